package icecast

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// Negotiator opens connections to Shoutcast v1 / Icecast servers requesting
// ICY metadata interleaving. It performs a single negotiation per call and
// never retries; retry policy belongs to the session manager.
type Negotiator struct {
	client *http.Client
	config *Config
}

// NewNegotiator creates a negotiator with default configuration
func NewNegotiator() *Negotiator {
	return NewNegotiatorWithConfig(nil)
}

// NewNegotiatorWithConfig creates a negotiator with custom configuration
func NewNegotiatorWithConfig(config *Config) *Negotiator {
	if config == nil {
		config = DefaultConfig()
	}

	// No overall client timeout: the body is a live stream read indefinitely.
	// Only dialing and waiting for response headers are bounded.
	client := &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout: config.HTTP.ConnectionTimeout,
			}).DialContext,
			ResponseHeaderTimeout: config.HTTP.ResponseTimeout,
			DisableCompression:    true,
		},
	}

	return &Negotiator{
		client: client,
		config: config,
	}
}

// Conn is a negotiated stream session: one live connection plus the
// server-declared ICY parameters. It is owned by exactly one session and is
// destroyed on disconnect.
type Conn struct {
	Endpoint     *common.StreamEndpoint
	Metadata     *common.StreamMetadata
	MetaInterval int // bytes between metadata blocks, 0 = interleaving disabled

	body      io.ReadCloser
	closeOnce sync.Once
}

// Connect establishes a connection to the endpoint requesting ICY metadata
// interleaving. A non-success status or a response that is neither audio nor
// ICY-flavored yields a REJECTED error; transport failures yield
// CONNECTION_FAILED. The absence of icy-metaint is a supported passthrough
// configuration, not an error.
func (n *Negotiator) Connect(ctx context.Context, endpoint *common.StreamEndpoint) (*Conn, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "stream_negotiator",
		"url":       endpoint.URL,
	})

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint.URL, nil)
	if err != nil {
		return nil, common.NewStreamError(endpoint.Type, endpoint.URL,
			common.ErrCodeConnection, "failed to create request", err)
	}

	for key, value := range n.config.HTTP.GetHTTPHeaders() {
		req.Header.Set(key, value)
	}
	if endpoint.Username != "" {
		req.SetBasicAuth(endpoint.Username, endpoint.Password)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return nil, common.NewStreamError(endpoint.Type, endpoint.URL,
			common.ErrCodeConnection, "connection failed", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, common.NewStreamError(endpoint.Type, endpoint.URL,
			common.ErrCodeRejected, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	contentType := resp.Header.Get("Content-Type")
	hasICYHeaders := resp.Header.Get("icy-metaint") != "" || resp.Header.Get("icy-name") != ""
	if !common.IsAudioContentType(contentType) && !hasICYHeaders {
		resp.Body.Close()
		return nil, common.NewStreamError(endpoint.Type, endpoint.URL,
			common.ErrCodeRejected, fmt.Sprintf("not an audio stream (content type %q)", contentType), nil)
	}

	metaInterval := 0
	if metaInt := resp.Header.Get("icy-metaint"); metaInt != "" {
		if interval, err := strconv.Atoi(metaInt); err == nil && interval > 0 {
			metaInterval = interval
		}
	}

	metadata := extractHeaderMetadata(resp.Header, endpoint)

	logger.Info("stream negotiation successful", logging.Fields{
		"status_code":   resp.StatusCode,
		"content_type":  contentType,
		"meta_interval": metaInterval,
		"station":       metadata.Station,
		"bitrate":       metadata.Bitrate,
	})
	if metaInterval == 0 {
		logger.Debug("no icy-metaint in response, metadata interleaving disabled")
	}

	return &Conn{
		Endpoint:     endpoint,
		Metadata:     metadata,
		MetaInterval: metaInterval,
		body:         resp.Body,
	}, nil
}

// Read is a single blocking read of raw interleaved stream bytes. A clean
// server close surfaces as io.EOF; any other failure is wrapped as DROPPED.
// Read never retries.
func (c *Conn) Read(buf []byte) (int, error) {
	n, err := c.body.Read(buf)
	if err != nil && err != io.EOF {
		return n, common.NewStreamError(c.Endpoint.Type, c.Endpoint.URL,
			common.ErrCodeDropped, "stream read failed", err)
	}
	return n, err
}

// Close releases the underlying connection. Safe to call multiple times and
// from a goroutine other than the reader; an in-flight Read unblocks with an
// error once the body is closed.
func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.body.Close()
	})
	return err
}

// extractHeaderMetadata maps the icy-* response headers onto StreamMetadata.
// Servers with no icy-name get a display name derived from the URL host.
func extractHeaderMetadata(headers http.Header, endpoint *common.StreamEndpoint) *common.StreamMetadata {
	headerMap := make(map[string]string)
	for key, values := range headers {
		if len(values) > 0 {
			headerMap[strings.ToLower(key)] = values[0]
		}
	}

	contentType := headers.Get("Content-Type")

	metadata := &common.StreamMetadata{
		URL:         endpoint.URL,
		Type:        endpoint.Type,
		Station:     strings.TrimSpace(headers.Get("icy-name")),
		Genre:       strings.TrimSpace(headers.Get("icy-genre")),
		ContentType: common.ExtractContentType(contentType),
		Codec:       common.CodecFromContentType(contentType),
		Headers:     headerMap,
		Timestamp:   time.Now(),
	}

	if bitrate := headers.Get("icy-br"); bitrate != "" {
		metadata.Bitrate = common.ParseBitrateFromString(bitrate)
	}
	if metadata.Station == "" {
		metadata.Station = common.StationNameFromURL(endpoint.URL)
	}

	return metadata
}
