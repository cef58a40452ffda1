package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ARRNAV26/Voting-System/internal/adapter/metrics"
	"github.com/ARRNAV26/Voting-System/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

const (
	reasonSlowConsumer = "slow_consumer"
	reasonWriteFailed  = "write_failed"
)

var _ domain.Publisher = (*Hub)(nil)

// Hub connects sessions to the registry and publishes events to them.
type Hub struct {
	registry   *Registry
	clock      clockwork.Clock
	metrics    *metrics.WebSocketMetrics
	bufferSize int

	// publishMu gives every session the same event order. It is held only
	// while queueing, which never blocks.
	publishMu sync.Mutex
}

type HubOption func(*Hub)

func WithMetrics(m *metrics.WebSocketMetrics) HubOption {
	return func(h *Hub) { h.metrics = m }
}

// WithSendBuffer sets the per-connection queue length.
func WithSendBuffer(n int) HubOption {
	return func(h *Hub) { h.bufferSize = n }
}

func NewHub(registry *Registry, clock clockwork.Clock, opts ...HubOption) *Hub {
	h := &Hub{
		registry:   registry,
		clock:      clock,
		bufferSize: DefaultSendBuffer,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Connect starts a writer for conn and registers it under identity.
// On ErrRegistryFull the connection is closed.
func (h *Hub) Connect(identity int64, conn Conn) (*Session, error) {
	s := &Session{
		ID:          uuid.New(),
		Identity:    identity,
		ConnectedAt: h.clock.Now(),
	}
	s.writer = newConnWriter(conn, h.clock, h.bufferSize, func(err error) {
		h.evict(s, reasonWriteFailed, err)
	})

	if err := h.registry.Add(s); err != nil {
		s.writer.stopGraceful(websocket.CloseTryAgainLater, "connection limit reached")
		if h.metrics != nil {
			h.metrics.RejectedConnections.Inc()
		}
		return nil, fmt.Errorf("register session: %w", err)
	}

	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
		h.metrics.ConnectionsTotal.WithLabelValues(identityKind(s)).Inc()
	}
	slog.Debug("Client connected", "session_id", s.ID.String(), "identity", s.Identity, "total_clients", h.registry.Len())
	return s, nil
}

// Disconnect deregisters s and closes its connection. Safe to call more than
// once and concurrently with eviction.
func (h *Hub) Disconnect(s *Session) {
	if h.registry.Remove(s) {
		if h.metrics != nil {
			h.metrics.ActiveConnections.Dec()
		}
		slog.Debug("Client disconnected", "session_id", s.ID.String(), "identity", s.Identity)
	}
	s.writer.stop()
}

// Publish encodes event once and queues it to every registered session.
// Sessions that cannot take the message are evicted; that is never reported
// to the caller. The only error is an event that cannot be encoded.
func (h *Hub) Publish(ctx context.Context, event domain.Event) error {
	start := h.clock.Now()

	f, err := encodeEvent(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}

	var (
		delivered int
		slow      []*Session
	)
	h.publishMu.Lock()
	h.registry.ForEach(func(s *Session) {
		if s.Send(f.forIdentity(s.Identity)) {
			delivered++
			return
		}
		slow = append(slow, s)
	})
	h.publishMu.Unlock()

	for _, s := range slow {
		h.evict(s, reasonSlowConsumer, nil)
	}

	if h.metrics != nil {
		h.metrics.MessagesPublished.WithLabelValues(string(event.Type())).Inc()
		h.metrics.Deliveries.Add(float64(delivered))
		h.metrics.PublishDuration.Observe(h.clock.Since(start).Seconds())
	}
	slog.DebugContext(ctx, "Event published", "type", event.Type(), "delivered", delivered, "evicted", len(slow))
	return nil
}

// Stop closes every session with a going-away frame and empties the registry.
func (h *Hub) Stop() {
	sessions := h.registry.drain()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.writer.stopGraceful(websocket.CloseGoingAway, "Server shutting down")
		}()
	}
	wg.Wait()

	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(0)
	}
	slog.Info("Hub stopped", "disconnected_clients", len(sessions))
}

// Registry exposes the hub's registry for read-only inspection.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// evict removes s after a delivery failure. The connection is closed in the
// background so the caller never waits on a stalled peer.
func (h *Hub) evict(s *Session, reason string, cause error) {
	if !h.registry.Remove(s) {
		go s.writer.stop()
		return
	}

	slog.Warn("Evicting client", "session_id", s.ID.String(), "identity", s.Identity, "reason", reason, "error", cause)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
		h.metrics.Evictions.WithLabelValues(reason).Inc()
	}
	go s.writer.stop()
}

func identityKind(s *Session) string {
	if s.Anonymous() {
		return "anonymous"
	}
	return "authenticated"
}
