// Package roomstate owns the per-room ordered collections: the chat
// log, the member roster and the peer roster. Each collection lives in
// the shared TTL store as a single serialized JSON list. The store has
// no atomic read-modify-write, so every mutation holds a per-(room,
// kind) lock across the read, the write-back and the publish callback;
// subscribers therefore observe lists in exactly the order mutations
// were serialized.
package roomstate

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/voxchat/server/internal/domain"
	"github.com/voxchat/server/internal/store"
)

// Kind identifies which per-room collection an operation targets.
type Kind int

const (
	ChatLog Kind = iota
	Members
	Peers
)

func (k Kind) suffix() string {
	switch k {
	case ChatLog:
		return "chatlog"
	case Members:
		return "chatmembers"
	case Peers:
		return "peers"
	}
	return "unknown"
}

// TTLs holds the expiration window per collection kind. The window is
// absolute from the last write; every write resets it.
type TTLs struct {
	ChatLog time.Duration
	Members time.Duration
	Peers   time.Duration
}

type State struct {
	store store.Store
	ttls  TTLs
	keys  keyedMutex
}

func New(st store.Store, ttls TTLs) *State {
	return &State{store: st, ttls: ttls}
}

func (s *State) ttl(k Kind) time.Duration {
	switch k {
	case ChatLog:
		return s.ttls.ChatLog
	case Members:
		return s.ttls.Members
	default:
		return s.ttls.Peers
	}
}

func key(room string, k Kind) string { return room + "-" + k.suffix() }

// AppendMessage appends msg to the room's chat log and returns the
// updated log. publish, when non-nil, runs with the updated log while
// the key is still locked.
func (s *State) AppendMessage(ctx context.Context, room string, msg domain.ChatMessage, publish func([]domain.ChatMessage)) ([]domain.ChatMessage, error) {
	return appendItem(ctx, s, room, ChatLog, msg, publish)
}

// ChatLogSnapshot reads the room's chat log, materializing an empty one
// if the room has never been written to.
func (s *State) ChatLogSnapshot(ctx context.Context, room string) ([]domain.ChatMessage, error) {
	return snapshot[domain.ChatMessage](ctx, s, room, ChatLog)
}

// AppendMember appends username to the room roster. Duplicates are kept
// so a user joined from two devices appears twice.
func (s *State) AppendMember(ctx context.Context, room, username string, publish func([]string)) ([]string, error) {
	return appendItem(ctx, s, room, Members, username, publish)
}

// RemoveMember drops the first roster entry equal to username.
func (s *State) RemoveMember(ctx context.Context, room, username string, publish func([]string)) ([]string, error) {
	return removeFirst(ctx, s, room, Members, username, publish)
}

func (s *State) MembersSnapshot(ctx context.Context, room string) ([]string, error) {
	return snapshot[string](ctx, s, room, Members)
}

func (s *State) AppendPeer(ctx context.Context, room, peerID string, publish func([]string)) ([]string, error) {
	return appendItem(ctx, s, room, Peers, peerID, publish)
}

func (s *State) RemovePeer(ctx context.Context, room, peerID string, publish func([]string)) ([]string, error) {
	return removeFirst(ctx, s, room, Peers, peerID, publish)
}

func (s *State) PeersSnapshot(ctx context.Context, room string) ([]string, error) {
	return snapshot[string](ctx, s, room, Peers)
}

func appendItem[T comparable](ctx context.Context, s *State, room string, kind Kind, item T, publish func([]T)) ([]T, error) {
	k := key(room, kind)
	s.keys.lock(k)
	defer s.keys.unlock(k)

	list, err := readList[T](ctx, s, k)
	if err != nil {
		return nil, err
	}
	list = append(list, item)
	if err := writeList(ctx, s, k, kind, list); err != nil {
		return nil, err
	}
	if publish != nil {
		publish(list)
	}
	return list, nil
}

// removeFirst drops the first element equal to item. An absent list is
// materialized empty, so removing from an idle room is a no-op that
// still leaves an empty list behind.
func removeFirst[T comparable](ctx context.Context, s *State, room string, kind Kind, item T, publish func([]T)) ([]T, error) {
	k := key(room, kind)
	s.keys.lock(k)
	defer s.keys.unlock(k)

	list, err := readList[T](ctx, s, k)
	if err != nil {
		return nil, err
	}
	for i := range list {
		if list[i] == item {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if err := writeList(ctx, s, k, kind, list); err != nil {
		return nil, err
	}
	if publish != nil {
		publish(list)
	}
	return list, nil
}

func snapshot[T comparable](ctx context.Context, s *State, room string, kind Kind) ([]T, error) {
	k := key(room, kind)
	s.keys.lock(k)
	defer s.keys.unlock(k)

	raw, err := s.store.GetString(ctx, k)
	if errors.Is(err, store.ErrNotFound) {
		list := []T{}
		if err := writeList(ctx, s, k, kind, list); err != nil {
			return nil, err
		}
		return list, nil
	}
	if err != nil {
		return nil, err
	}
	var list []T
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode %q: %w", k, err)
	}
	return list, nil
}

func readList[T comparable](ctx context.Context, s *State, k string) ([]T, error) {
	raw, err := s.store.GetString(ctx, k)
	if errors.Is(err, store.ErrNotFound) {
		return []T{}, nil
	}
	if err != nil {
		return nil, err
	}
	var list []T
	if err := json.Unmarshal([]byte(raw), &list); err != nil {
		return nil, fmt.Errorf("decode %q: %w", k, err)
	}
	return list, nil
}

func writeList[T any](ctx context.Context, s *State, k string, kind Kind, list []T) error {
	raw, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode %q: %w", k, err)
	}
	return s.store.SetString(ctx, k, string(raw), s.ttl(kind))
}
