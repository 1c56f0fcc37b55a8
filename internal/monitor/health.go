package monitor

import (
	"sync"
	"time"
)

// State is the health classification of one connection attempt
type State string

const (
	// StateHealthy means audio chunks are arriving within the expected cadence
	StateHealthy State = "healthy"
	// StateDegraded means the audio cadence slowed past the degraded threshold
	// but bytes are still progressing. Informational only.
	StateDegraded State = "degraded"
	// StateStalled means no audio bytes arrived for the stall timeout while the
	// connection is still nominally open. This is the desync signal, distinct
	// from a clean EOF or a read error.
	StateStalled State = "stalled"
	// StateFailed means the connection reported an error or an unexpected EOF.
	// Failed is terminal for the attempt.
	StateFailed State = "failed"
)

// Config holds health thresholds
type Config struct {
	DegradedAfter time.Duration `mapstructure:"degraded_after"`
	StalledAfter  time.Duration `mapstructure:"stalled_after"`
	HealthyReset  time.Duration `mapstructure:"healthy_reset"`
}

// DefaultConfig returns the default health thresholds
func DefaultConfig() *Config {
	return &Config{
		DegradedAfter: 5 * time.Second,
		StalledAfter:  20 * time.Second,
		HealthyReset:  30 * time.Second,
	}
}

// Snapshot is a point-in-time view of session health
type Snapshot struct {
	State               State     `json:"state"`
	LastAudioAt         time.Time `json:"last_audio_at"`
	LastMetadataAt      time.Time `json:"last_metadata_at"`
	BytesReceived       int64     `json:"bytes_received"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
}

// Monitor observes audio throughput and metadata cadence for one session and
// classifies the connection's health. The read loop feeds it; the session
// worker evaluates it on a timer independent of the blocking read, so a
// stalled-but-open connection is still detected.
type Monitor struct {
	mu sync.Mutex

	config *Config
	now    func() time.Time

	lastAudio    time.Time
	lastMetadata time.Time
	healthyStart time.Time
	bytes        int64
	failed       bool
	failures     int
}

// New creates a monitor with the given thresholds
func New(config *Config) *Monitor {
	if config == nil {
		config = DefaultConfig()
	}
	return &Monitor{
		config: config,
		now:    time.Now,
	}
}

// Reset arms the monitor for a fresh connection attempt. The stall clock
// starts at connect time so a server that accepts and never sends is caught.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = false
	m.lastAudio = m.now()
	m.healthyStart = time.Time{}
}

// ObserveAudio records delivery of n audio bytes
func (m *Monitor) ObserveAudio(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	m.lastAudio = now
	m.bytes += int64(n)
	if m.healthyStart.IsZero() {
		m.healthyStart = now
	}
}

// ObserveMetadata records delivery of a metadata event
func (m *Monitor) ObserveMetadata() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastMetadata = m.now()
}

// Fail marks the current attempt terminally failed and bumps the
// consecutive-failure counter
func (m *Monitor) Fail() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = true
	m.failures++
	m.healthyStart = time.Time{}
}

// ClearFailures resets the consecutive-failure counter. The session manager
// calls this only after a sustained healthy period, never mid-backoff.
func (m *Monitor) ClearFailures() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = 0
}

// State classifies the current attempt. Transitions between Healthy, Degraded
// and Stalled follow elapsed time since the last audio chunk; Failed is sticky
// until the next Reset.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Monitor) stateLocked() State {
	if m.failed {
		return StateFailed
	}

	elapsed := m.now().Sub(m.lastAudio)
	switch {
	case elapsed >= m.config.StalledAfter:
		m.healthyStart = time.Time{}
		return StateStalled
	case elapsed >= m.config.DegradedAfter:
		m.healthyStart = time.Time{}
		return StateDegraded
	default:
		return StateHealthy
	}
}

// SustainedHealthy reports whether the attempt has been continuously healthy
// long enough to earn back the retry budget
func (m *Monitor) SustainedHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stateLocked() != StateHealthy || m.healthyStart.IsZero() {
		return false
	}
	return m.now().Sub(m.healthyStart) >= m.config.HealthyReset
}

// ConsecutiveFailures returns the failure streak across attempts
func (m *Monitor) ConsecutiveFailures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

// Snapshot returns a point-in-time view for status queries
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{
		State:               m.stateLocked(),
		LastAudioAt:         m.lastAudio,
		LastMetadataAt:      m.lastMetadata,
		BytesReceived:       m.bytes,
		ConsecutiveFailures: m.failures,
	}
}
