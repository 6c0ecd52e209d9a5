// Package hub implements the chat protocol state machine. One hub
// serves every room: the transport delivers each client action tagged
// with the originating connection id, the hub resolves the connection's
// room through the registry, mutates the relevant room collection and
// fans the result back out through the transport's group primitives.
package hub

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/voxchat/server/internal/domain"
	"github.com/voxchat/server/internal/registry"
	"github.com/voxchat/server/internal/roomstate"
)

// Event names pushed to clients.
const (
	EventReceiveMessage  = "ReceiveMessage"
	EventChatLog         = "GetChatLog"
	EventChatMembersList = "GetChatMembersList"
	EventReceivePeer     = "ReceivePeer"
)

// Transport is the push-capable connection layer the hub fans out
// through. Send failures on individual connections stay inside the
// transport; they never abort a hub state mutation that already
// completed.
type Transport interface {
	Subscribe(connID, group string)
	Unsubscribe(connID, group string)
	SendToOne(connID, event string, payload any)
	SendToGroup(group, event string, payload any)
}

type Hub struct {
	transport Transport
	registry  *registry.Registry
	rooms     *roomstate.State
}

func New(t Transport, reg *registry.Registry, rooms *roomstate.State) *Hub {
	return &Hub{transport: t, registry: reg, rooms: rooms}
}

// JoinChat subscribes the connection to the room's broadcast group,
// records it in the registry, announces the updated roster to the room
// and hands the joiner the current chat log. Joining again on a live
// connection overwrites the previous registration (last write wins).
func (h *Hub) JoinChat(ctx context.Context, id, username, room string) error {
	conn, err := domain.NewConnection(id, username, room)
	if err != nil {
		return err
	}

	h.transport.Subscribe(id, room)

	if err := h.registry.Register(ctx, conn); err != nil {
		return err
	}

	if _, err := h.rooms.AppendMember(ctx, room, username, func(members []string) {
		h.transport.SendToGroup(room, EventChatMembersList, members)
	}); err != nil {
		return err
	}

	chatlog, err := h.rooms.ChatLogSnapshot(ctx, room)
	if err != nil {
		return err
	}
	h.transport.SendToOne(id, EventChatLog, chatlog)

	h.receiveMessage(ctx, conn, username+" joined the chatroom.")

	log.Info().Str("module", "hub").Str("conn_id", id).Str("room", room).Str("username", username).Msg("joined chat")
	return nil
}

// SendMessage relays content to the sender's room. A message from an
// unregistered connection is accepted and silently discarded.
func (h *Hub) SendMessage(ctx context.Context, id, content string) error {
	conn, ok, err := h.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("module", "hub").Str("conn_id", id).Msg("message from unregistered connection, dropped")
		return nil
	}
	h.receiveMessage(ctx, conn, content)
	return nil
}

// receiveMessage appends to the chat log and broadcasts the message as
// one ordered unit. Delivery to live members is primary: when the
// append fails the message is still broadcast and the failure only
// logged.
func (h *Hub) receiveMessage(ctx context.Context, conn domain.Connection, content string) {
	msg := domain.ChatMessage{Username: conn.Username, Content: content}
	_, err := h.rooms.AppendMessage(ctx, conn.Room, msg, func([]domain.ChatMessage) {
		h.transport.SendToGroup(conn.Room, EventReceiveMessage, msg)
	})
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("room", conn.Room).Msg("chat log append failed, broadcasting anyway")
		h.transport.SendToGroup(conn.Room, EventReceiveMessage, msg)
	}
}

// SendPeer binds peerID to the connection and appends it to the room's
// peer roster, broadcasting the updated roster.
func (h *Hub) SendPeer(ctx context.Context, id, peerID string) error {
	conn, ok, err := h.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		log.Warn().Str("module", "hub").Str("conn_id", id).Msg("peer from unregistered connection, dropped")
		return nil
	}
	if err := h.registry.BindPeer(ctx, id, peerID); err != nil {
		return err
	}
	_, err = h.rooms.AppendPeer(ctx, conn.Room, peerID, func(peers []string) {
		if len(peers) > 0 {
			h.transport.SendToGroup(conn.Room, EventReceivePeer, peers)
		}
	})
	return err
}

// RemovePeer unbinds the connection's peer id and drops it from the
// room roster. An emptied roster is not broadcast: removing the last
// peer leaves remaining members with their stale list.
func (h *Hub) RemovePeer(ctx context.Context, id, peerID string) error {
	conn, ok, err := h.registry.Lookup(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	if err := h.registry.UnbindPeer(ctx, id); err != nil {
		return err
	}
	_, err = h.rooms.RemovePeer(ctx, conn.Room, peerID, func(peers []string) {
		if len(peers) > 0 {
			h.transport.SendToGroup(conn.Room, EventReceivePeer, peers)
		}
	})
	return err
}

// Disconnect tears down everything the connection owns. The room is
// resolved once up front because every later step needs it. Calling
// Disconnect again after the registry entry is gone is a no-op.
func (h *Hub) Disconnect(ctx context.Context, id string) {
	conn, ok, err := h.registry.Lookup(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("conn_id", id).Msg("disconnect lookup failed")
		return
	}
	if !ok {
		log.Info().Str("module", "hub").Str("conn_id", id).Msg("disconnect for unknown connection")
		return
	}

	peerID, err := h.registry.BoundPeer(ctx, id)
	if err != nil {
		log.Error().Err(err).Str("module", "hub").Str("conn_id", id).Msg("bound peer lookup failed")
	} else if peerID != "" {
		if err := h.RemovePeer(ctx, id, peerID); err != nil {
			log.Error().Err(err).Str("module", "hub").Str("conn_id", id).Msg("peer removal failed")
		}
	}

	h.receiveMessage(ctx, conn, conn.Username+" left the chatroom.")

	if _, err := h.rooms.RemoveMember(ctx, conn.Room, conn.Username, func(members []string) {
		if len(members) > 0 {
			h.transport.SendToGroup(conn.Room, EventChatMembersList, members)
		}
	}); err != nil {
		log.Error().Err(err).Str("module", "hub").Str("conn_id", id).Msg("member removal failed")
	}

	if err := h.registry.Unregister(ctx, id); err != nil {
		log.Error().Err(err).Str("module", "hub").Str("conn_id", id).Msg("unregister failed")
	}
	h.transport.Unsubscribe(id, conn.Room)

	log.Info().Str("module", "hub").Str("conn_id", id).Str("room", conn.Room).Msg("disconnected")
}

// ChatMembers returns the member roster of the caller's room. A caller
// that never joined gets an empty list.
func (h *Hub) ChatMembers(ctx context.Context, id string) ([]string, error) {
	conn, ok, err := h.registry.Lookup(ctx, id)
	if err != nil || !ok {
		return []string{}, err
	}
	return h.rooms.MembersSnapshot(ctx, conn.Room)
}

// Peers returns the peer roster of the caller's room.
func (h *Hub) Peers(ctx context.Context, id string) ([]string, error) {
	conn, ok, err := h.registry.Lookup(ctx, id)
	if err != nil || !ok {
		return []string{}, err
	}
	return h.rooms.PeersSnapshot(ctx, conn.Room)
}
