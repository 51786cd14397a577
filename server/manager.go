package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/room4-2/livetranslate/config"
	"github.com/room4-2/livetranslate/logging"
	"github.com/room4-2/livetranslate/metrics"
	"github.com/room4-2/livetranslate/session"
	"github.com/room4-2/livetranslate/wirelog"
)

// ErrTooManyBridges is returned when MAX_SESSIONS bridges are attached.
var ErrTooManyBridges = errors.New("maximum sessions reached")

const (
	activeBridgesKey = "active_bridges"
	// restoreTimeout bounds each redis round trip made for a bridge.
	restoreTimeout   = 2 * time.Second
)

// Manager owns every attached bridge.
type Manager struct {
	bridges map[string]*Bridge
	mu      sync.RWMutex
	redis   *redis.Client
	config  *config.Config
	dialer  session.Dialer
	wire    wirelog.Recorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type ManagerOptions struct {
	Config  *config.Config
	Dialer  session.Dialer
	Redis   *redis.Client // optional
	WireLog wirelog.Recorder
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

func NewManager(opts ManagerOptions) *Manager {
	return &Manager{
		bridges: make(map[string]*Bridge),
		redis:   opts.Redis,
		config:  opts.Config,
		dialer:  opts.Dialer,
		wire:    opts.WireLog,
		metrics: opts.Metrics,
		logger:  logging.NewComponentLogger(opts.Logger, "manager"),
	}
}

// CreateBridge attaches a UI connection. clientID keys the resumption
// handle so a reconnecting UI resumes its previous conversation. Redis
// round trips happen outside the registry lock.
func (m *Manager) CreateBridge(ctx context.Context, clientID string, conn *websocket.Conn) (*Bridge, error) {
	if m.Count() >= m.config.MaxSessions {
		return nil, ErrTooManyBridges
	}

	id := uuid.New().String()
	if clientID == "" {
		clientID = id
	}
	logger := m.logger.With(slog.String("bridge_id", id), slog.String("client_id", clientID))

	var store session.HandleStore
	if m.redis != nil {
		store = session.NewRedisHandleStore(m.redis, clientID, m.config.SessionTimeout)
	}
	tracker := session.NewTracker(store, logger)
	restoreCtx, cancel := context.WithTimeout(ctx, restoreTimeout)
	if err := tracker.Restore(restoreCtx); err != nil {
		logger.Warn("could not restore resumption handle", slog.Any("error", err))
	}
	cancel()

	m.mu.Lock()
	if len(m.bridges) >= m.config.MaxSessions {
		m.mu.Unlock()
		return nil, ErrTooManyBridges
	}
	b, err := newBridge(bridgeOptions{
		id:       id,
		clientID: clientID,
		conn:     conn,
		cfg:      m.config,
		session: session.Options{
			Dialer:       m.dialer,
			Tracker:      tracker,
			Logger:       logger,
			WireLog:      m.wire,
			Metrics:      m.metrics,
			SetupTimeout: m.config.SetupTimeout,
		},
		metrics: m.metrics,
		logger:  logger,
	})
	if err != nil {
		m.mu.Unlock()
		return nil, err
	}
	m.bridges[b.ID] = b
	m.metrics.SessionOpened()
	m.mu.Unlock()

	m.mirrorBridge(ctx, b)
	return b, nil
}

// mirrorBridge records an attached bridge in redis.
func (m *Manager) mirrorBridge(ctx context.Context, b *Bridge) {
	if m.redis == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	key := "bridge:" + b.ID
	pipe := m.redis.Pipeline()
	pipe.HSet(ctx, key, map[string]interface{}{
		"client_id":     b.ClientID,
		"created_at":    b.CreatedAt.Format(time.RFC3339),
		"last_activity": b.LastActivity().Format(time.RFC3339),
		"status":        "active",
	})
	pipe.SAdd(ctx, activeBridgesKey, b.ID)
	pipe.Expire(ctx, key, m.config.SessionTimeout)
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("failed to mirror bridge", slog.String("bridge_id", b.ID), slog.Any("error", err))
	}
}

func (m *Manager) GetBridge(id string) (*Bridge, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.bridges[id]
	return b, ok
}

// RemoveBridge closes and forgets a bridge.
func (m *Manager) RemoveBridge(ctx context.Context, id string) {
	m.mu.Lock()
	b, ok := m.bridges[id]
	if ok {
		m.detachLocked(id, b)
	}
	m.mu.Unlock()

	if ok {
		m.unmirror(ctx, id)
	}
}

func (m *Manager) detachLocked(id string, b *Bridge) {
	_ = b.Close()
	delete(m.bridges, id)
	m.metrics.SessionClosed()
}

func (m *Manager) unmirror(ctx context.Context, ids ...string) {
	if m.redis == nil || len(ids) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, restoreTimeout)
	defer cancel()

	pipe := m.redis.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, "bridge:"+id)
		pipe.SRem(ctx, activeBridgesKey, id)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		m.logger.Warn("failed to remove bridge mirror", slog.Any("bridge_ids", ids), slog.Any("error", err))
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.bridges)
}

// CleanupInactive closes bridges with no client traffic for SESSION_TIMEOUT.
func (m *Manager) CleanupInactive(ctx context.Context) int {
	now := time.Now()
	var removed []string

	m.mu.Lock()
	for id, b := range m.bridges {
		if now.Sub(b.LastActivity()) > m.config.SessionTimeout {
			m.logger.Info("closing inactive bridge", slog.String("bridge_id", id))
			m.detachLocked(id, b)
			removed = append(removed, id)
		}
	}
	m.mu.Unlock()

	m.unmirror(ctx, removed...)
	return len(removed)
}

// StartCleanupRoutine reaps inactive bridges every interval until ctx is done.
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.CleanupInactive(ctx)
		}
	}
}

// Shutdown closes all bridges.
func (m *Manager) Shutdown(ctx context.Context) {
	var removed []string

	m.mu.Lock()
	for id, b := range m.bridges {
		m.detachLocked(id, b)
		removed = append(removed, id)
	}
	m.mu.Unlock()

	m.unmirror(ctx, removed...)
}
