package playlist

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/RyanBlaney/latency-benchmark-common/logging"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// maxPlaylistBytes caps how much of a response body is read when deciding
// whether it is a playlist. Real PLS files are a few hundred bytes; anything
// larger is a stream we must not slurp.
const maxPlaylistBytes = 64 * 1024

// ResolverConfig holds configuration for playlist resolution
type ResolverConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	FetchTimeout time.Duration `mapstructure:"fetch_timeout"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// DefaultResolverConfig returns the default resolver configuration
func DefaultResolverConfig() *ResolverConfig {
	return &ResolverConfig{
		UserAgent:    "StreamSession/1.0",
		FetchTimeout: 10 * time.Second,
		ProbeTimeout: 5 * time.Second,
	}
}

// Resolver turns a user-supplied URL into a concrete stream endpoint. It is
// stateless and safe to call repeatedly; every recovery attempt re-resolves
// because the playlist may have rotated upstream.
type Resolver struct {
	client *http.Client
	config *ResolverConfig
}

// NewResolver creates a resolver with the given configuration
func NewResolver(config *ResolverConfig) *Resolver {
	if config == nil {
		config = DefaultResolverConfig()
	}
	return &Resolver{
		client: &http.Client{Timeout: config.FetchTimeout},
		config: config,
	}
}

// Resolve fetches url and classifies it. A response that already carries ICY
// headers or an audio content type is a direct stream and is returned as-is
// without probing (negotiation probes it anyway). A PLS or M3U body is parsed
// and its entries probed in ascending order; the first reachable entry wins.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) (*common.StreamEndpoint, error) {
	logger := logging.WithFields(logging.Fields{
		"component": "playlist_resolver",
		"url":       rawURL,
	})

	if !common.IsValidURL(rawURL) {
		return nil, common.NewStreamError(common.StreamTypeUnsupported, rawURL,
			common.ErrCodeRejected, "not an http(s) URL", nil)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, r.config.FetchTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(fetchCtx, "GET", rawURL, nil)
	if err != nil {
		return nil, common.NewStreamError(common.StreamTypeUnsupported, rawURL,
			common.ErrCodeConnection, "failed to create request", err)
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, common.NewStreamError(common.StreamTypeUnsupported, rawURL,
			common.ErrCodeConnection, "failed to fetch URL", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, common.NewStreamError(common.StreamTypeUnsupported, rawURL,
			common.ErrCodeRejected, fmt.Sprintf("HTTP %d: %s", resp.StatusCode, resp.Status), nil)
	}

	contentType := resp.Header.Get("Content-Type")

	// Already a live ICY stream: the server would hand us audio bytes here.
	if resp.Header.Get("icy-metaint") != "" || resp.Header.Get("icy-name") != "" ||
		common.IsAudioContentType(contentType) {
		logger.Debug("URL is a direct stream", logging.Fields{
			"content_type": contentType,
		})
		return directEndpoint(rawURL, resp.Header), nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBytes))
	if err != nil {
		return nil, common.NewStreamError(common.StreamTypeUnsupported, rawURL,
			common.ErrCodeConnection, "failed to read response body", err)
	}
	content := string(body)

	switch {
	case looksLikePLS(rawURL, contentType, content):
		pls, err := ParsePLS(strings.NewReader(content))
		if err != nil {
			return nil, err
		}
		return r.firstReachable(ctx, rawURL, pls, logger)

	case looksLikeM3U(rawURL, contentType, content):
		streamURL, ok := parseM3U(strings.NewReader(content))
		if !ok {
			return nil, common.NewStreamError(common.StreamTypeShoutcast, rawURL,
				common.ErrCodeInvalidPlaylist, "no stream URL found in M3U playlist", nil)
		}
		logger.Debug("resolved M3U playlist", logging.Fields{"stream_url": streamURL})
		return &common.StreamEndpoint{URL: streamURL, Type: common.StreamTypeShoutcast}, nil

	default:
		// Not a playlist. Treat as a direct endpoint; negotiation decides
		// whether the server actually serves audio.
		return directEndpoint(rawURL, resp.Header), nil
	}
}

// firstReachable probes playlist entries in ascending index order and returns
// the first one that answers. All entries unreachable yields NO_PLAYABLE_ENTRY.
func (r *Resolver) firstReachable(ctx context.Context, playlistURL string, pls *Playlist, logger logging.Logger) (*common.StreamEndpoint, error) {
	for _, entry := range pls.Entries {
		if !common.IsValidURL(entry.URL) {
			logger.Warn("skipping non-http playlist entry", logging.Fields{
				"index": entry.Index,
				"entry": entry.URL,
			})
			continue
		}

		if err := r.probe(ctx, entry.URL); err != nil {
			logger.Debug("playlist entry unreachable", logging.Fields{
				"index": entry.Index,
				"entry": entry.URL,
				"error": err.Error(),
			})
			continue
		}

		logger.Info("resolved playlist entry", logging.Fields{
			"index": entry.Index,
			"entry": entry.URL,
			"title": entry.Title,
		})
		return &common.StreamEndpoint{URL: entry.URL, Type: common.StreamTypeShoutcast}, nil
	}

	return nil, common.NewStreamError(common.StreamTypeShoutcast, playlistURL,
		common.ErrCodeNoPlayableEntry, "no reachable entry in playlist", nil)
}

// probe opens the entry just long enough to see a success status. The body is
// discarded immediately; full negotiation happens later with ICY headers.
func (r *Resolver) probe(ctx context.Context, streamURL string) error {
	probeCtx, cancel := context.WithTimeout(ctx, r.config.ProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, "GET", streamURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", r.config.UserAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := r.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}
	return nil
}

func directEndpoint(rawURL string, headers http.Header) *common.StreamEndpoint {
	streamType := common.StreamTypeICEcast
	if strings.Contains(strings.ToLower(headers.Get("Server")), "shoutcast") ||
		headers.Get("icy-notice2") != "" {
		streamType = common.StreamTypeShoutcast
	}
	return &common.StreamEndpoint{URL: rawURL, Type: streamType}
}

func looksLikePLS(rawURL, contentType, content string) bool {
	return strings.Contains(contentType, "audio/x-scpls") ||
		strings.Contains(contentType, "application/pls+xml") ||
		strings.HasSuffix(strings.ToLower(rawURL), ".pls") ||
		strings.Contains(strings.ToLower(content), "[playlist]")
}

func looksLikeM3U(rawURL, contentType, content string) bool {
	lower := strings.ToLower(rawURL)
	trimmed := strings.TrimSpace(content)
	return strings.Contains(contentType, "mpegurl") ||
		strings.HasSuffix(lower, ".m3u") ||
		strings.HasSuffix(lower, ".m3u8") ||
		strings.HasPrefix(trimmed, "#EXTM3U") ||
		strings.HasPrefix(trimmed, "http://") ||
		strings.HasPrefix(trimmed, "https://")
}
