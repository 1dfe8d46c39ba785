package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const DefaultHeartbeat = 30 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SnapshotFunc returns the state sent to a client right after it connects.
type SnapshotFunc func(ctx context.Context) (any, error)

type Server struct {
	hub       *Hub
	snapshot  SnapshotFunc
	heartbeat time.Duration
	logger    *zap.Logger
}

func NewServer(hub *Hub, snapshot SnapshotFunc, heartbeat time.Duration, logger *zap.Logger) *Server {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeat
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{hub: hub, snapshot: snapshot, heartbeat: heartbeat, logger: logger.Named("ws")}
}

func (s *Server) StateWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx := r.Context()
	client := newClient(conn)
	unsubscribe := s.hub.subscribe(client)
	defer unsubscribe()

	state, err := s.snapshot(ctx)
	if err != nil {
		_ = client.writeJSON(map[string]any{"type": "error", "message": err.Error()})
		return
	}
	if err := client.writeJSON(Message{Type: TypeSnapshot, Data: state}); err != nil {
		return
	}

	clientClosed := make(chan struct{})
	go func() {
		defer close(clientClosed)
		for {
			if _, _, readErr := conn.ReadMessage(); readErr != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-clientClosed:
			return
		case <-ctx.Done():
			return
		case <-client.dropped:
			return
		case msg := <-client.send:
			if err := client.writeJSON(msg); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			if err := client.ping(); err != nil {
				s.logger.Debug("websocket heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}
