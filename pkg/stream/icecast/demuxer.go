package icecast

import (
	"io"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// MetadataFunc is called by the demuxer whenever the stream title changes
type MetadataFunc func(event common.MetadataEvent)

// Demuxer splits an ICY metadata-interleaved byte stream into pure audio
// bytes and out-of-band metadata events. It implements io.Reader over the
// audio payload only; metadata never leaks into the returned bytes.
//
// The wire format: every interval audio bytes the server injects one length
// byte (value x 16 = block size) followed by that many bytes of
// key='value'; pairs, null-padded. A length byte of zero is a keep-alive.
type Demuxer struct {
	src      io.Reader
	interval int
	onMeta   MetadataFunc

	remaining int // audio bytes until the next metadata block
	lastTitle string
	sawTitle  bool
	logger    logging.Logger
}

// NewDemuxer wraps src with the negotiated metadata interval. An interval of
// zero (negotiation without icy-metaint) makes the demuxer a passthrough.
// onMeta may be nil when the caller only wants the audio side.
func NewDemuxer(src io.Reader, interval int, onMeta MetadataFunc) *Demuxer {
	return &Demuxer{
		src:       src,
		interval:  interval,
		onMeta:    onMeta,
		remaining: interval,
		logger: logging.WithFields(logging.Fields{
			"component": "icy_demuxer",
		}),
	}
}

// Read returns the next audio bytes, consuming and parsing any metadata block
// that falls at the current position. Short reads from the source are fine:
// the byte count toward the next block is tracked across calls, so partial
// reads never corrupt the chunk boundary.
func (d *Demuxer) Read(p []byte) (int, error) {
	if d.interval <= 0 {
		return d.src.Read(p)
	}
	if len(p) == 0 {
		return 0, nil
	}

	if d.remaining == 0 {
		if err := d.consumeMetadataBlock(); err != nil {
			return 0, err
		}
		d.remaining = d.interval
	}

	toRead := len(p)
	if toRead > d.remaining {
		toRead = d.remaining
	}

	n, err := d.src.Read(p[:toRead])
	d.remaining -= n
	return n, err
}

// consumeMetadataBlock reads one length byte and the declared block. The
// declared length is always honored even when it spans several source reads;
// io.ReadFull buffers until the block is complete. Malformed content is a
// logged anomaly, never an error: audio passthrough must not stop because a
// metadata block failed to parse.
func (d *Demuxer) consumeMetadataBlock() error {
	var lengthByte [1]byte
	if _, err := io.ReadFull(d.src, lengthByte[:]); err != nil {
		return err
	}

	blockLen := int(lengthByte[0]) * 16
	if blockLen == 0 {
		// Keep-alive, no event.
		return nil
	}

	block := make([]byte, blockLen)
	if _, err := io.ReadFull(d.src, block); err != nil {
		return err
	}

	pairs, ok := ParseMetadataBlock(block)
	if !ok {
		d.logger.Warn("dropping malformed metadata block", logging.Fields{
			"block_len": blockLen,
		})
		return nil
	}

	event, ok := metadataEvent(pairs)
	if !ok {
		return nil
	}

	if d.sawTitle && event.StreamTitle == d.lastTitle {
		return nil
	}
	d.lastTitle = event.StreamTitle
	d.sawTitle = true

	d.logger.Debug("stream title changed", logging.Fields{
		"stream_title": event.StreamTitle,
	})
	if d.onMeta != nil {
		d.onMeta(event)
	}
	return nil
}
