package session

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
	"github.com/RyanBlaney/stream-session/pkg/stream/playlist"
)

// ErrSessionExists is returned by Play when the key already has a live session
var ErrSessionExists = fmt.Errorf("session already playing for this channel")

// ErrSessionNotFound is returned by queries and commands against unknown keys
var ErrSessionNotFound = fmt.Errorf("no session for this channel")

// ErrNotPlaying is returned by Refresh when the session is not in a
// refreshable state
var ErrNotPlaying = fmt.Errorf("session is not playing")

// Manager owns all sessions, keyed by voice channel. Each session runs its
// own worker goroutine; the manager only creates, looks up, and stops them.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session

	resolver Resolver
	dialer   Dialer
	config   *Config
	metrics  *sessionMetrics
	logger   logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewManager creates a session manager with the default resolver and ICY
// dialer. A nil config selects defaults; a nil registerer disables metrics
// registration side effects by falling back to a throwaway registry.
func NewManager(config *Config, reg prometheus.Registerer) *Manager {
	if config == nil {
		config = DefaultConfig()
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	return newManager(config, playlist.NewResolver(nil), NewIcecastDialer(nil), reg)
}

func newManager(config *Config, resolver Resolver, dialer Dialer, reg prometheus.Registerer) *Manager {
	ctx, cancel := context.WithCancel(context.Background())
	return &Manager{
		sessions: make(map[string]*Session),
		resolver: resolver,
		dialer:   dialer,
		config:   config,
		metrics:  newSessionMetrics(reg),
		logger:   logging.WithFields(logging.Fields{"component": "session_manager"}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Play starts a session for key streaming url into sink. It fails with
// ErrSessionExists if the key already has a live session; callers must Leave
// first to switch streams.
func (m *Manager) Play(key, url string, sink io.Writer) (*Session, error) {
	if !common.IsValidURL(url) {
		return nil, common.NewStreamError(
			common.StreamTypeUnsupported, url, common.ErrCodeConnection,
			"invalid stream URL", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.sessions[key]; ok {
		select {
		case <-existing.done:
			// Worker already exited on its own; replace it.
			delete(m.sessions, key)
		default:
			return nil, ErrSessionExists
		}
	}

	s := newSession(m.ctx, key, url, sink, m.resolver, m.dialer, m.config, m.metrics)
	m.sessions[key] = s
	go s.run()

	m.logger.Info("session started", logging.Fields{
		"session": key,
		"url":     url,
	})
	return s, nil
}

// Leave stops the session for key and waits for its worker to release the
// connection. The stop never engages the retry protocol.
func (m *Manager) Leave(key string) error {
	m.mu.Lock()
	s, ok := m.sessions[key]
	if ok {
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	// Suppress retry classification before tearing anything down so the
	// EOF from our own close is never mistaken for a failure.
	s.markStopping()
	s.cancel()
	<-s.done

	m.logger.Info("session left", logging.Fields{"session": key})
	return nil
}

// Refresh forces the session for key to re-resolve and reconnect without
// consuming its retry budget
func (m *Manager) Refresh(key string) error {
	s, err := m.lookup(key)
	if err != nil {
		return err
	}
	if s.State() != StatePlaying {
		return ErrNotPlaying
	}
	select {
	case s.refreshCh <- struct{}{}:
	default:
		// A refresh is already pending.
	}
	return nil
}

// Status returns a snapshot of the session for key
func (m *Manager) Status(key string) (Status, error) {
	s, err := m.lookup(key)
	if err != nil {
		return Status{}, err
	}
	return s.Status(), nil
}

// NowPlaying returns the latest metadata event for key, nil when no title
// has arrived yet
func (m *Manager) NowPlaying(key string) (*common.MetadataEvent, error) {
	s, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return s.NowPlaying(), nil
}

// Events returns the event queue for key
func (m *Manager) Events(key string) (<-chan Event, error) {
	s, err := m.lookup(key)
	if err != nil {
		return nil, err
	}
	return s.Events(), nil
}

// Sessions lists the keys of all live sessions
func (m *Manager) Sessions() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.sessions))
	for key := range m.sessions {
		keys = append(keys, key)
	}
	return keys
}

// Shutdown stops every session and waits for their workers to exit
func (m *Manager) Shutdown() {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for key, s := range m.sessions {
		sessions = append(sessions, s)
		delete(m.sessions, key)
	}
	m.mu.Unlock()

	for _, s := range sessions {
		s.markStopping()
	}
	m.cancel()
	for _, s := range sessions {
		<-s.done
	}
}

func (m *Manager) lookup(key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}
