package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/grafana/dskit/backoff"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/internal/monitor"
	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// LifecycleState is the session's position in its lifecycle state machine
type LifecycleState string

const (
	StateIdle       LifecycleState = "idle"
	StateConnecting LifecycleState = "connecting"
	StatePlaying    LifecycleState = "playing"
	StateRecovering LifecycleState = "recovering"
	StateStopped    LifecycleState = "stopped"
)

// Resolver turns a user-supplied URL into a connectable endpoint.
// *playlist.Resolver satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, url string) (*common.StreamEndpoint, error)
}

// Negotiated is a live, negotiated upstream connection handed to a session
type Negotiated struct {
	Reader       io.ReadCloser
	Metadata     *common.StreamMetadata
	MetaInterval int
}

// Dialer performs stream negotiation for an endpoint
type Dialer interface {
	Connect(ctx context.Context, endpoint *common.StreamEndpoint) (*Negotiated, error)
}

// EventKind classifies session events delivered to the frontend
type EventKind string

const (
	// EventMetadata carries a stream title change
	EventMetadata EventKind = "metadata"
	// EventReconnecting is the single user-facing indicator per recovery cycle
	EventReconnecting EventKind = "reconnecting"
	// EventStopped reports a clean stop (explicit leave)
	EventStopped EventKind = "stopped"
	// EventFailed reports a terminal failure: retries exhausted, a rejected
	// negotiation, or an unresolvable URL
	EventFailed EventKind = "failed"
)

// Event is a session notification delivered on the per-session event queue
type Event struct {
	Kind      EventKind             `json:"kind"`
	SessionID string                `json:"session_id"`
	Metadata  *common.MetadataEvent `json:"metadata,omitempty"`
	Attempt   int                   `json:"attempt,omitempty"`
	Err       error                 `json:"-"`
	Timestamp time.Time             `json:"timestamp"`
}

// Status is a point-in-time snapshot of a session for status queries
type Status struct {
	SessionID  string                 `json:"session_id"`
	URL        string                 `json:"url"`
	State      LifecycleState         `json:"state"`
	Endpoint   *common.StreamEndpoint `json:"endpoint,omitempty"`
	Station    string                 `json:"station,omitempty"`
	Bitrate    int                    `json:"bitrate,omitempty"`
	Health     monitor.Snapshot       `json:"health"`
	RetryCount int                    `json:"retry_count"`
	StartedAt  time.Time              `json:"started_at"`
}

// Session owns one voice channel's playback: the current endpoint, the single
// live connection, health, and the retry budget. All mutation happens on the
// session's worker goroutine; reads go through the mutex-guarded snapshot.
type Session struct {
	id   string
	url  string
	sink io.Writer

	resolver Resolver
	dialer   Dialer
	config   *Config
	metrics  *sessionMetrics
	monitor  *monitor.Monitor
	logger   logging.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	refreshCh chan struct{}
	events    chan Event
	done      chan struct{}

	// stopping is set synchronously by Leave before the connection is torn
	// down, so the EOF produced by our own teardown is never classified as a
	// failure.
	stopping bool

	mu        sync.Mutex
	state     LifecycleState
	endpoint  *common.StreamEndpoint
	metadata  *common.StreamMetadata
	lastEvent *common.MetadataEvent
	startedAt time.Time
}

func newSession(parent context.Context, id, url string, sink io.Writer, resolver Resolver, dialer Dialer, config *Config, metrics *sessionMetrics) *Session {
	ctx, cancel := context.WithCancel(parent)
	return &Session{
		id:        id,
		url:       url,
		sink:      sink,
		resolver:  resolver,
		dialer:    dialer,
		config:    config,
		metrics:   metrics,
		monitor:   monitor.New(config.Health),
		ctx:       ctx,
		cancel:    cancel,
		refreshCh: make(chan struct{}, 1),
		events:    make(chan Event, config.EventBufferSize),
		done:      make(chan struct{}),
		state:     StateIdle,
		startedAt: time.Now(),
		logger: logging.WithFields(logging.Fields{
			"component": "session",
			"session":   id,
			"url":       url,
		}),
	}
}

func (s *Session) setState(state LifecycleState) {
	s.mu.Lock()
	prev := s.state
	s.state = state
	s.mu.Unlock()

	if prev != state {
		s.logger.Info("session state changed", logging.Fields{
			"from": string(prev),
			"to":   string(state),
		})
	}
}

// State returns the current lifecycle state
func (s *Session) State() LifecycleState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns a point-in-time snapshot
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := Status{
		SessionID:  s.id,
		URL:        s.url,
		State:      s.state,
		Endpoint:   s.endpoint,
		Health:     s.monitor.Snapshot(),
		RetryCount: s.monitor.ConsecutiveFailures(),
		StartedAt:  s.startedAt,
	}
	if s.metadata != nil {
		status.Station = s.metadata.Station
		status.Bitrate = s.metadata.Bitrate
	}
	return status
}

// NowPlaying returns the most recent metadata event, or nil before the first
// title arrives (or when the stream does not interleave metadata)
func (s *Session) NowPlaying() *common.MetadataEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastEvent
}

// Events returns the session's event queue. The channel is closed when the
// session reaches Stopped.
func (s *Session) Events() <-chan Event {
	return s.events
}

func (s *Session) emit(event Event) {
	event.SessionID = s.id
	event.Timestamp = time.Now()
	select {
	case s.events <- event:
	default:
		// A slow frontend must not block the session worker.
	}
}

func (s *Session) markStopping() {
	s.mu.Lock()
	s.stopping = true
	s.mu.Unlock()
}

func (s *Session) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

func (s *Session) backoffConfig() backoff.Config {
	return backoff.Config{
		MinBackoff: s.config.MinBackoff,
		MaxBackoff: s.config.MaxBackoff,
		// The retry budget is enforced against the health monitor's
		// consecutive-failure counter; the backoff only shapes delays.
		MaxRetries: 0,
	}
}
