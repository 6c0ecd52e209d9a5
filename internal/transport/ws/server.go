// Package ws is the websocket push transport: it upgrades connections,
// tracks broadcast-group membership and pumps hub events to clients.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Session is the protocol layer driven by inbound client actions. The
// hub implements it.
type Session interface {
	JoinChat(ctx context.Context, id, username, room string) error
	SendMessage(ctx context.Context, id, content string) error
	SendPeer(ctx context.Context, id, peerID string) error
	RemovePeer(ctx context.Context, id, peerID string) error
	Disconnect(ctx context.Context, id string)
	ChatMembers(ctx context.Context, id string) ([]string, error)
	Peers(ctx context.Context, id string) ([]string, error)
}

type Server struct {
	session    Session
	readLimit  int64
	pingPeriod time.Duration

	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[string]map[string]struct{}
}

func NewServer(readLimit int64, pingPeriod time.Duration) *Server {
	return &Server{
		readLimit:  readLimit,
		pingPeriod: pingPeriod,
		conns:      make(map[string]*Conn),
		groups:     make(map[string]map[string]struct{}),
	}
}

// BindSession wires the protocol layer in after construction; the hub
// needs the server as its transport, so neither can be built first.
func (s *Server) BindSession(sess Session) {
	s.session = sess
}

// envelope is the wire format of every server-pushed event.
type envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

func (s *Server) Subscribe(connID, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	members, ok := s.groups[group]
	if !ok {
		members = make(map[string]struct{})
		s.groups[group] = members
	}
	members[connID] = struct{}{}
}

func (s *Server) Unsubscribe(connID, group string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if members, ok := s.groups[group]; ok {
		delete(members, connID)
		if len(members) == 0 {
			delete(s.groups, group)
		}
	}
}

func (s *Server) SendToOne(connID, event string, payload any) {
	s.mu.RLock()
	c := s.conns[connID]
	s.mu.RUnlock()
	if c == nil {
		return
	}
	s.push(c, event, payload)
}

func (s *Server) SendToGroup(group, event string, payload any) {
	s.mu.RLock()
	targets := make([]*Conn, 0, len(s.groups[group]))
	for id := range s.groups[group] {
		if c := s.conns[id]; c != nil {
			targets = append(targets, c)
		}
	}
	s.mu.RUnlock()
	for _, c := range targets {
		s.push(c, event, payload)
	}
}

func (s *Server) push(c *Conn, event string, payload any) {
	b, err := json.Marshal(envelope{Event: event, Data: payload})
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Str("event", event).Msg("marshal event")
		return
	}
	if err := c.TrySend(b); err != nil {
		log.Warn().Err(err).Str("module", "ws").Str("conn_id", c.id).Str("event", event).Msg("dropping frame")
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleChat upgrades the request and runs the connection's pumps. Each
// websocket gets a fresh connection id for its lifetime.
func (s *Server) HandleChat(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "ws").Msg("upgrade failed")
		return
	}
	if s.readLimit > 0 {
		ws.SetReadLimit(s.readLimit)
	}

	conn := newConn(uuid.NewString(), ws)
	s.mu.Lock()
	s.conns[conn.id] = conn
	s.mu.Unlock()
	log.Info().Str("module", "ws").Str("conn_id", conn.id).Msg("client connected")

	ctx, cancel := context.WithCancel(ctx)
	go s.writePump(ctx, conn)
	go s.readPump(ctx, cancel, conn)
}

func (s *Server) writePump(ctx context.Context, c *Conn) {
	ticker := time.NewTicker(s.pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Warn().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(5 * time.Second)); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("set write deadline")
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "ws").Str("conn_id", c.id).Msg("write error")
				return
			}
		}
	}
}

// readPump reads client actions until the socket dies, then tears the
// connection down. The hub's disconnect runs on a fresh context so
// cleanup still completes after ctx is canceled.
func (s *Server) readPump(ctx context.Context, cancel context.CancelFunc, c *Conn) {
	defer func() {
		cancel()
		s.mu.Lock()
		delete(s.conns, c.id)
		s.mu.Unlock()
		s.session.Disconnect(context.Background(), c.id)
		c.Close()
		log.Info().Str("module", "ws").Str("conn_id", c.id).Msg("client disconnected")
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.ws.ReadMessage()
			if err != nil {
				return
			}
			s.dispatch(ctx, c, data)
		}
	}
}
