package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/stream-session/internal/monitor"
	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// fakeResolver counts calls and returns a fixed endpoint or error
type fakeResolver struct {
	calls atomic.Int32
	err   error
}

func (r *fakeResolver) Resolve(ctx context.Context, url string) (*common.StreamEndpoint, error) {
	r.calls.Add(1)
	if r.err != nil {
		return nil, r.err
	}
	return &common.StreamEndpoint{URL: url, Type: common.StreamTypeICEcast}, nil
}

// fakeDialer runs a per-attempt connect function
type fakeDialer struct {
	calls   atomic.Int32
	connect func(attempt int) (*Negotiated, error)
}

func (d *fakeDialer) Connect(ctx context.Context, endpoint *common.StreamEndpoint) (*Negotiated, error) {
	attempt := int(d.calls.Add(1))
	return d.connect(attempt)
}

// streamReader produces audio bytes until closed
type streamReader struct {
	closed    chan struct{}
	closeOnce sync.Once
}

func newStreamReader() *streamReader {
	return &streamReader{closed: make(chan struct{})}
}

func (r *streamReader) Read(p []byte) (int, error) {
	select {
	case <-r.closed:
		return 0, io.EOF
	default:
	}
	time.Sleep(time.Millisecond)
	for i := range p {
		p[i] = 0xAB
	}
	return len(p), nil
}

func (r *streamReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

// stallReader sends one chunk and then hangs until closed
type stallReader struct {
	sent      bool
	closed    chan struct{}
	closeOnce sync.Once
}

func newStallReader() *stallReader {
	return &stallReader{closed: make(chan struct{})}
}

func (r *stallReader) Read(p []byte) (int, error) {
	if !r.sent {
		r.sent = true
		for i := range p {
			p[i] = 0xCD
		}
		return len(p), nil
	}
	<-r.closed
	return 0, io.EOF
}

func (r *stallReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

// scriptedReader serves fixed bytes and then hangs until closed
type scriptedReader struct {
	data      []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func newScriptedReader(data []byte) *scriptedReader {
	return &scriptedReader{data: data, closed: make(chan struct{})}
}

func (r *scriptedReader) Read(p []byte) (int, error) {
	if len(r.data) > 0 {
		n := copy(p, r.data)
		r.data = r.data[n:]
		return n, nil
	}
	<-r.closed
	return 0, io.EOF
}

func (r *scriptedReader) Close() error {
	r.closeOnce.Do(func() { close(r.closed) })
	return nil
}

func testConfig() *Config {
	return &Config{
		MaxRetries:          3,
		MinBackoff:          time.Millisecond,
		MaxBackoff:          2 * time.Millisecond,
		HealthCheckInterval: 5 * time.Millisecond,
		ReadBufferSize:      256,
		EventBufferSize:     64,
		Health:              monitor.DefaultConfig(),
	}
}

func droppedErr() error {
	return common.NewStreamError(common.StreamTypeICEcast, "http://x",
		common.ErrCodeDropped, "connection dropped", nil)
}

func waitForState(t *testing.T, s *Session, want LifecycleState) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if s.State() == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for state %s, current %s", want, s.State())
		case <-time.After(time.Millisecond):
		}
	}
}

func collectEvents(s *Session) []Event {
	var events []Event
	for event := range s.Events() {
		events = append(events, event)
	}
	return events
}

func eventKinds(events []Event) []EventKind {
	kinds := make([]EventKind, 0, len(events))
	for _, e := range events {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

func TestSessionRetriesExactlyThreeTimesThenStops(t *testing.T) {
	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return nil, droppedErr()
	}}
	registry := prometheus.NewRegistry()
	manager := newManager(testConfig(), resolver, dialer, registry)
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	<-s.done

	assert.Equal(t, int32(3), dialer.calls.Load(), "never a 4th connection attempt")
	assert.Equal(t, int32(3), resolver.calls.Load(), "every attempt re-resolves")
	assert.Equal(t, StateStopped, s.State())

	events := collectEvents(s)
	kinds := eventKinds(events)
	assert.Equal(t, []EventKind{EventReconnecting, EventReconnecting, EventFailed}, kinds,
		"two silent retries, then a single terminal failure surface")

	assert.Equal(t, float64(3), testutil.ToFloat64(manager.metrics.reconnects))
	assert.Equal(t, float64(1), testutil.ToFloat64(manager.metrics.failures))
	assert.Equal(t, float64(0), testutil.ToFloat64(manager.metrics.activeSessions))
}

func TestSessionRejectedIsTerminalImmediately(t *testing.T) {
	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return nil, common.NewStreamError(common.StreamTypeICEcast, "http://x",
			common.ErrCodeRejected, "HTTP 404", nil)
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	<-s.done

	assert.Equal(t, int32(1), dialer.calls.Load(), "rejected negotiations are never retried")
	events := collectEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Kind)
	assert.Equal(t, common.ErrCodeRejected, common.ErrorCode(events[0].Err))
}

func TestSessionResolveErrorIsTerminal(t *testing.T) {
	resolver := &fakeResolver{err: common.NewStreamError(common.StreamTypeShoutcast, "http://x",
		common.ErrCodeInvalidPlaylist, "missing [playlist] header", nil)}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		t.Fatal("dialer must not run when resolution fails")
		return nil, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/broken.pls", io.Discard)
	require.NoError(t, err)

	<-s.done

	events := collectEvents(s)
	require.Len(t, events, 1)
	assert.Equal(t, EventFailed, events[0].Kind)
}

func TestLeaveDuringRecoveringStopsImmediately(t *testing.T) {
	config := testConfig()
	// A backoff long enough that only an explicit cancellation can end it.
	config.MinBackoff = time.Minute
	config.MaxBackoff = time.Minute

	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return nil, droppedErr()
	}}
	manager := newManager(config, resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	waitForState(t, s, StateRecovering)

	start := time.Now()
	require.NoError(t, manager.Leave("guild-1"))
	assert.Less(t, time.Since(start), 2*time.Second, "leave must not wait out the backoff")

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, int32(1), dialer.calls.Load(), "no further attempts after leave")
	assert.ErrorIs(t, manager.Leave("guild-1"), ErrSessionNotFound)
}

func TestLeaveDuringPlayingIsCleanStop(t *testing.T) {
	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{
			Reader:   newStreamReader(),
			Metadata: &common.StreamMetadata{Station: "Test FM"},
		}, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	waitForState(t, s, StatePlaying)
	require.NoError(t, manager.Leave("guild-1"))

	assert.Equal(t, StateStopped, s.State())
	assert.Equal(t, int32(1), dialer.calls.Load(), "own teardown is never classified as a failure")

	events := collectEvents(s)
	require.NotEmpty(t, events)
	assert.Equal(t, EventStopped, events[len(events)-1].Kind)
}

func TestRefreshDoesNotConsumeRetryBudget(t *testing.T) {
	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{
			Reader:   newStreamReader(),
			Metadata: &common.StreamMetadata{Station: "Test FM"},
		}, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	waitForState(t, s, StatePlaying)
	require.NoError(t, manager.Refresh("guild-1"))

	deadline := time.After(5 * time.Second)
	for dialer.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("refresh never reconnected")
		case <-time.After(time.Millisecond):
		}
	}
	waitForState(t, s, StatePlaying)

	status, err := manager.Status("guild-1")
	require.NoError(t, err)
	assert.Equal(t, 0, status.RetryCount, "refresh must not touch the retry counter")
	assert.Equal(t, int32(2), resolver.calls.Load(), "refresh re-resolves the endpoint")

	require.NoError(t, manager.Leave("guild-1"))
}

func TestRefreshRejectedWhenNotPlaying(t *testing.T) {
	config := testConfig()
	config.MinBackoff = time.Minute
	config.MaxBackoff = time.Minute

	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return nil, droppedErr()
	}}
	manager := newManager(config, resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	waitForState(t, s, StateRecovering)
	assert.ErrorIs(t, manager.Refresh("guild-1"), ErrNotPlaying)
}

func TestStalledStreamTriggersRecovery(t *testing.T) {
	config := testConfig()
	config.Health = &monitor.Config{
		DegradedAfter: 10 * time.Millisecond,
		StalledAfter:  30 * time.Millisecond,
		HealthyReset:  time.Hour,
	}

	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(attempt int) (*Negotiated, error) {
		if attempt == 1 {
			return &Negotiated{Reader: newStallReader(), Metadata: &common.StreamMetadata{}}, nil
		}
		return &Negotiated{Reader: newStreamReader(), Metadata: &common.StreamMetadata{}}, nil
	}}
	manager := newManager(config, resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	// The stalled-but-open connection must be detected by the timer, not the
	// read path, and drive one recovery into a working stream.
	deadline := time.After(5 * time.Second)
	for dialer.calls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("stall was never detected")
		case <-time.After(time.Millisecond):
		}
	}
	waitForState(t, s, StatePlaying)

	status, err := manager.Status("guild-1")
	require.NoError(t, err)
	assert.Equal(t, 1, status.RetryCount)

	require.NoError(t, manager.Leave("guild-1"))
}

func TestMetadataEventsReachTheFrontend(t *testing.T) {
	wire := &bytes.Buffer{}
	wire.Write(bytes.Repeat([]byte{0x01}, 16))
	title := "StreamTitle='Test Artist - Test Song';"
	padded := (len(title) + 15) / 16
	wire.WriteByte(byte(padded))
	block := make([]byte, padded*16)
	copy(block, title)
	wire.Write(block)
	wire.Write(bytes.Repeat([]byte{0x02}, 16))

	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{
			Reader:       newScriptedReader(wire.Bytes()),
			Metadata:     &common.StreamMetadata{Station: "Test FM"},
			MetaInterval: 16,
		}, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	deadline := time.After(5 * time.Second)
	for {
		now, err := manager.NowPlaying("guild-1")
		require.NoError(t, err)
		if now != nil {
			assert.Equal(t, "Test Artist - Test Song", now.StreamTitle)
			assert.Equal(t, "Test Artist", now.Artist)
			assert.Equal(t, "Test Song", now.Song)
			break
		}
		select {
		case <-deadline:
			t.Fatal("metadata event never arrived")
		case <-time.After(time.Millisecond):
		}
	}

	var sawMetadata bool
	drain := time.After(100 * time.Millisecond)
loop:
	for {
		select {
		case event := <-s.Events():
			if event.Kind == EventMetadata {
				sawMetadata = true
				break loop
			}
		case <-drain:
			break loop
		}
	}
	assert.True(t, sawMetadata)

	require.NoError(t, manager.Leave("guild-1"))
}

func TestPlayRejectsDuplicateKey(t *testing.T) {
	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{Reader: newStreamReader(), Metadata: &common.StreamMetadata{}}, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)
	waitForState(t, s, StatePlaying)

	_, err = manager.Play("guild-1", "http://other.example.com/live", io.Discard)
	assert.ErrorIs(t, err, ErrSessionExists)

	// A different key is an independent session.
	_, err = manager.Play("guild-2", "http://other.example.com/live", io.Discard)
	assert.NoError(t, err)

	assert.ElementsMatch(t, []string{"guild-1", "guild-2"}, manager.Sessions())
}

func TestPlayRejectsInvalidURL(t *testing.T) {
	manager := newManager(testConfig(), &fakeResolver{}, &fakeDialer{}, prometheus.NewRegistry())
	defer manager.Shutdown()

	_, err := manager.Play("guild-1", "not-a-url", io.Discard)
	assert.Error(t, err)
}

func TestQueriesOnUnknownKey(t *testing.T) {
	manager := newManager(testConfig(), &fakeResolver{}, &fakeDialer{}, prometheus.NewRegistry())
	defer manager.Shutdown()

	_, err := manager.Status("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = manager.NowPlaying("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, manager.Refresh("nope"), ErrSessionNotFound)
}

func TestAudioReachesTheSink(t *testing.T) {
	audio := bytes.Repeat([]byte{0x7E}, 512)

	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{Reader: newScriptedReader(audio), Metadata: &common.StreamMetadata{}}, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	var mu sync.Mutex
	sink := &bytes.Buffer{}
	safeSink := writerFunc(func(p []byte) (int, error) {
		mu.Lock()
		defer mu.Unlock()
		return sink.Write(p)
	})

	s, err := manager.Play("guild-1", "http://stream.example.com/live", safeSink)
	require.NoError(t, err)
	waitForState(t, s, StatePlaying)

	deadline := time.After(5 * time.Second)
	for {
		mu.Lock()
		n := sink.Len()
		mu.Unlock()
		if n >= len(audio) {
			break
		}
		select {
		case <-deadline:
			t.Fatal("audio never reached the sink")
		case <-time.After(time.Millisecond):
		}
	}

	require.NoError(t, manager.Leave("guild-1"))
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, audio, sink.Bytes()[:len(audio)])
}

type writerFunc func(p []byte) (int, error)

func (f writerFunc) Write(p []byte) (int, error) { return f(p) }

func TestShutdownStopsAllSessions(t *testing.T) {
	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{Reader: newStreamReader(), Metadata: &common.StreamMetadata{}}, nil
	}}
	manager := newManager(testConfig(), resolver, dialer, prometheus.NewRegistry())

	s1, err := manager.Play("guild-1", "http://a.example.com/live", io.Discard)
	require.NoError(t, err)
	s2, err := manager.Play("guild-2", "http://b.example.com/live", io.Discard)
	require.NoError(t, err)
	waitForState(t, s1, StatePlaying)
	waitForState(t, s2, StatePlaying)

	manager.Shutdown()

	assert.Equal(t, StateStopped, s1.State())
	assert.Equal(t, StateStopped, s2.State())
	assert.Empty(t, manager.Sessions())
}

func TestSessionErrorsAreNotRetriedAfterLeaveRace(t *testing.T) {
	// A dropped error surfacing at the same moment as a leave must not
	// produce a recovery attempt.
	config := testConfig()
	config.MinBackoff = time.Minute
	config.MaxBackoff = time.Minute

	resolver := &fakeResolver{}
	reader := newStreamReader()
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return &Negotiated{Reader: reader, Metadata: &common.StreamMetadata{}}, nil
	}}
	manager := newManager(config, resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)
	waitForState(t, s, StatePlaying)

	// Kill the upstream just before leaving.
	reader.Close()
	require.NoError(t, manager.Leave("guild-1"))

	assert.Equal(t, int32(1), dialer.calls.Load())
	assert.Equal(t, StateStopped, s.State())
}

func TestEventOverflowDoesNotBlockTheWorker(t *testing.T) {
	config := testConfig()
	config.EventBufferSize = 1

	resolver := &fakeResolver{}
	dialer := &fakeDialer{connect: func(int) (*Negotiated, error) {
		return nil, droppedErr()
	}}
	manager := newManager(config, resolver, dialer, prometheus.NewRegistry())
	defer manager.Shutdown()

	s, err := manager.Play("guild-1", "http://stream.example.com/live", io.Discard)
	require.NoError(t, err)

	// Nobody drains the events channel; the worker must still finish.
	select {
	case <-s.done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker blocked on a full event queue")
	}
}

func TestErrRefreshSentinelStaysInternal(t *testing.T) {
	assert.False(t, common.IsRetryable(errRefresh))
	assert.False(t, errors.Is(errRefresh, errStalled))
}
