// Package registry maps live connection ids to their connection records
// and to an optional bound peer id, backed by the shared TTL store.
package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/voxchat/server/internal/domain"
	"github.com/voxchat/server/internal/store"
)

type Registry struct {
	store   store.Store
	connTTL time.Duration
	peerTTL time.Duration
}

func New(st store.Store, connTTL, peerTTL time.Duration) *Registry {
	return &Registry{store: st, connTTL: connTTL, peerTTL: peerTTL}
}

// Register upserts the record for conn.ID. Registering an id that is
// already registered overwrites the previous record.
func (r *Registry) Register(ctx context.Context, conn domain.Connection) error {
	raw, err := json.Marshal(conn)
	if err != nil {
		return fmt.Errorf("marshal connection: %w", err)
	}
	return r.store.SetString(ctx, conn.ID, string(raw), r.connTTL)
}

// Lookup returns the record for id. Absent and malformed records both
// report ok=false; only a store failure is returned as an error.
func (r *Registry) Lookup(ctx context.Context, id string) (domain.Connection, bool, error) {
	raw, err := r.store.GetString(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.Connection{}, false, nil
	}
	if err != nil {
		return domain.Connection{}, false, err
	}
	var conn domain.Connection
	if err := json.Unmarshal([]byte(raw), &conn); err != nil {
		log.Warn().Err(err).Str("module", "registry").Str("conn_id", id).Msg("malformed connection record, treating as absent")
		return domain.Connection{}, false, nil
	}
	return conn, true, nil
}

// Unregister deletes the record for id; deleting an absent id is a no-op.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	return r.store.Delete(ctx, id)
}

func peerKey(id string) string { return id + "-peer" }

// BindPeer stores the peer id the connection uses for direct peer
// sessions, as a scalar entry independent from the connection record.
func (r *Registry) BindPeer(ctx context.Context, id, peerID string) error {
	return r.store.SetString(ctx, peerKey(id), peerID, r.peerTTL)
}

func (r *Registry) UnbindPeer(ctx context.Context, id string) error {
	return r.store.Delete(ctx, peerKey(id))
}

// BoundPeer returns the peer id bound to the connection, or "" when none.
func (r *Registry) BoundPeer(ctx context.Context, id string) (string, error) {
	peerID, err := r.store.GetString(ctx, peerKey(id))
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	return peerID, err
}
