package common

import "time"

// StreamType represents the protocol variant of an audio stream endpoint
type StreamType string

const (
	StreamTypeShoutcast   StreamType = "shoutcast"
	StreamTypeICEcast     StreamType = "icecast"
	StreamTypeUnsupported StreamType = "unsupported"
)

// StreamEndpoint is a resolved, directly connectable stream URL.
// It is produced by the playlist resolver and consumed once by the negotiator.
type StreamEndpoint struct {
	URL      string     `json:"url"`
	Type     StreamType `json:"type"`
	Username string     `json:"username,omitempty"`
	Password string     `json:"password,omitempty"`
}

// StreamMetadata contains metadata about the stream as negotiated from the
// server's response headers
type StreamMetadata struct {
	URL         string            `json:"url"`
	Type        StreamType        `json:"type"`
	Station     string            `json:"station,omitempty"`
	Genre       string            `json:"genre,omitempty"`
	Bitrate     int               `json:"bitrate,omitempty"`
	ContentType string            `json:"content_type,omitempty"`
	Codec       string            `json:"codec,omitempty"`
	Headers     map[string]string `json:"headers,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// MetadataEvent is an in-band ICY metadata update extracted by the demuxer.
// Artist and Song are populated when the stream title parses as a known
// "Artist - Title" shape; StreamTitle always carries the raw value.
type MetadataEvent struct {
	StreamTitle string    `json:"stream_title"`
	Artist      string    `json:"artist,omitempty"`
	Song        string    `json:"song,omitempty"`
	ReceivedAt  time.Time `json:"received_at"`
}
