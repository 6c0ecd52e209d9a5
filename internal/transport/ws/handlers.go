package ws

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/voxchat/server/internal/hub"
)

func (s *Server) dispatch(ctx context.Context, c *Conn, data []byte) {
	var env struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("bad json")
		return
	}

	switch env.Type {
	case "join":
		s.handleJoin(ctx, c, data)
	case "message":
		s.handleMessage(ctx, c, data)
	case "peer":
		s.handlePeer(ctx, c, data)
	case "remove_peer":
		s.handleRemovePeer(ctx, c, data)
	case "members":
		s.handleMembers(ctx, c)
	case "peers":
		s.handlePeers(ctx, c)
	default:
		log.Warn().Str("module", "ws").Str("type", env.Type).Msg("unknown action")
	}
}

func (s *Server) pushError(c *Conn, reason string) {
	s.push(c, "Error", reason)
}

func (s *Server) handleJoin(ctx context.Context, c *Conn, data []byte) {
	var p struct {
		Type     string `json:"type"`
		Username string `json:"username"`
		Room     string `json:"room"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad join payload")
		s.pushError(c, "bad_payload")
		return
	}
	if err := s.session.JoinChat(ctx, c.id, p.Username, p.Room); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("join failed")
		s.pushError(c, "join_failed")
	}
}

func (s *Server) handleMessage(ctx context.Context, c *Conn, data []byte) {
	var p struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad message payload")
		s.pushError(c, "bad_payload")
		return
	}
	if err := s.session.SendMessage(ctx, c.id, p.Content); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("send message failed")
	}
}

func (s *Server) handlePeer(ctx context.Context, c *Conn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		PeerID string `json:"peer_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad peer payload")
		s.pushError(c, "bad_payload")
		return
	}
	if err := s.session.SendPeer(ctx, c.id, p.PeerID); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("send peer failed")
	}
}

func (s *Server) handleRemovePeer(ctx context.Context, c *Conn, data []byte) {
	var p struct {
		Type   string `json:"type"`
		PeerID string `json:"peer_id"`
	}
	if err := json.Unmarshal(data, &p); err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("bad remove_peer payload")
		s.pushError(c, "bad_payload")
		return
	}
	if err := s.session.RemovePeer(ctx, c.id, p.PeerID); err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("remove peer failed")
	}
}

func (s *Server) handleMembers(ctx context.Context, c *Conn) {
	members, err := s.session.ChatMembers(ctx, c.id)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("members lookup failed")
		return
	}
	s.push(c, hub.EventChatMembersList, members)
}

func (s *Server) handlePeers(ctx context.Context, c *Conn) {
	peers, err := s.session.Peers(ctx, c.id)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("peers lookup failed")
		return
	}
	s.push(c, hub.EventReceivePeer, peers)
}
