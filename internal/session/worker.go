package session

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/grafana/dskit/backoff"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/internal/monitor"
	"github.com/RyanBlaney/stream-session/pkg/stream/common"
	"github.com/RyanBlaney/stream-session/pkg/stream/icecast"
)

// Sentinel results for a single connection attempt. errRefresh and errStalled
// route back into the attempt loop without consuming the retry budget in the
// refresh case and as a retryable failure in the stall case.
var (
	errRefresh = errors.New("session: refresh requested")
	errStalled = errors.New("session: stream stalled")
)

// sinkError means the audio consumer went away; there is no point
// reconnecting upstream.
type sinkError struct {
	cause error
}

func (e *sinkError) Error() string {
	return fmt.Sprintf("audio sink write failed: %v", e.cause)
}

func (e *sinkError) Unwrap() error {
	return e.cause
}

// run is the session worker. It owns the resolve-connect-read cycle and the
// recovery loop, and is the only goroutine that mutates session state.
func (s *Session) run() {
	defer close(s.done)
	defer close(s.events)
	defer s.metrics.activeSessions.Dec()
	s.metrics.activeSessions.Inc()

	retry := backoff.New(s.ctx, s.backoffConfig())

	for {
		err := s.playOnce(retry)

		if s.ctx.Err() != nil || s.isStopping() {
			s.setState(StateStopped)
			s.emit(Event{Kind: EventStopped})
			s.logger.Info("session stopped")
			return
		}

		if errors.Is(err, errRefresh) {
			// Re-resolve with the same budget and no delay.
			s.logger.Info("refreshing stream", logging.Fields{
				"retry_count": s.monitor.ConsecutiveFailures(),
			})
			continue
		}

		retryable := errors.Is(err, errStalled) || common.IsRetryable(err)
		if !retryable {
			s.failTerminal(err)
			return
		}

		s.monitor.Fail()
		failures := s.monitor.ConsecutiveFailures()
		s.metrics.reconnects.Inc()
		s.setState(StateRecovering)

		if failures >= s.config.MaxRetries {
			s.failTerminal(fmt.Errorf("retries exhausted after %d attempts: %w", failures, err))
			return
		}

		s.emit(Event{Kind: EventReconnecting, Attempt: failures, Err: err})
		s.logger.Warn("stream lost, recovering", logging.Fields{
			"attempt": failures,
			"error":   err.Error(),
		})

		retry.Wait()
		if s.ctx.Err() != nil {
			s.setState(StateStopped)
			s.emit(Event{Kind: EventStopped})
			return
		}
	}
}

func (s *Session) failTerminal(err error) {
	s.setState(StateStopped)
	s.metrics.failures.Inc()
	s.emit(Event{Kind: EventFailed, Err: err})
	s.logger.Error(err, "session failed")
}

// playOnce runs one full resolve-connect-read cycle. It returns when the
// connection is lost, the stream stalls, a refresh is requested, or the
// session context is canceled.
func (s *Session) playOnce(retry *backoff.Backoff) error {
	s.setState(StateConnecting)

	// Resolution runs fresh on every attempt so playlist rotation and DNS
	// changes are picked up mid-recovery.
	endpoint, err := s.resolver.Resolve(s.ctx, s.url)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.endpoint = endpoint
	s.mu.Unlock()

	conn, err := s.dialer.Connect(s.ctx, endpoint)
	if err != nil {
		return err
	}
	defer conn.Reader.Close()

	s.mu.Lock()
	s.metadata = conn.Metadata
	s.mu.Unlock()
	s.monitor.Reset()

	s.logger.Info("stream connected", logging.Fields{
		"endpoint": endpoint.URL,
		"type":     string(endpoint.Type),
		"metaint":  conn.MetaInterval,
	})

	demuxer := icecast.NewDemuxer(conn.Reader, conn.MetaInterval, s.handleMetadata)

	readErr := make(chan error, 1)
	go func() {
		readErr <- s.copyAudio(demuxer)
	}()

	ticker := time.NewTicker(s.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			conn.Reader.Close()
			<-readErr
			return s.ctx.Err()

		case <-s.refreshCh:
			conn.Reader.Close()
			<-readErr
			return errRefresh

		case err := <-readErr:
			if err == nil || errors.Is(err, io.EOF) {
				return common.NewStreamError(
					common.StreamTypeUnsupported, s.url, common.ErrCodeDropped,
					"upstream closed the stream", err)
			}
			return err

		case <-ticker.C:
			if s.monitor.SustainedHealthy() {
				if s.monitor.ConsecutiveFailures() > 0 {
					s.logger.Debug("stream healthy, retry budget restored")
				}
				s.monitor.ClearFailures()
				retry.Reset()
			}
			if s.monitor.State() == monitor.StateStalled {
				conn.Reader.Close()
				<-readErr
				return errStalled
			}
		}
	}
}

// copyAudio pumps demultiplexed audio into the sink until read or write error
func (s *Session) copyAudio(src io.Reader) error {
	buf := make([]byte, s.config.ReadBufferSize)
	first := true
	for {
		n, err := src.Read(buf)
		if n > 0 {
			if first {
				first = false
				s.setState(StatePlaying)
			}
			s.monitor.ObserveAudio(n)
			s.metrics.audioBytes.Add(float64(n))
			if _, werr := s.sink.Write(buf[:n]); werr != nil {
				return &sinkError{cause: werr}
			}
		}
		if err != nil {
			return err
		}
	}
}

func (s *Session) handleMetadata(event common.MetadataEvent) {
	s.monitor.ObserveMetadata()
	s.metrics.metadataEvents.Inc()

	s.mu.Lock()
	s.lastEvent = &event
	s.mu.Unlock()

	s.logger.Debug("stream title changed", logging.Fields{
		"title":  event.StreamTitle,
		"artist": event.Artist,
		"song":   event.Song,
	})
	s.emit(Event{Kind: EventMetadata, Metadata: &event})
}
