package common

import (
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

// ParseBitrateFromString extracts bitrate from string (e.g., "128", "96k")
func ParseBitrateFromString(s string) int {
	s = strings.TrimSuffix(strings.ToLower(s), "k")
	s = strings.TrimSpace(s)

	if bitrate, err := strconv.Atoi(s); err == nil {
		return bitrate
	}
	return 0
}

// IsValidURL performs basic URL validation
func IsValidURL(rawURL string) bool {
	rawURL = strings.TrimSpace(rawURL)
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return false
	}
	u, err := url.Parse(rawURL)
	return err == nil && u.Host != ""
}

// ExtractContentType extracts main content type without parameters
func ExtractContentType(contentType string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}

	return strings.TrimSpace(contentType)
}

// IsAudioContentType reports whether the content type announces an audio
// payload a stream session can carry
func IsAudioContentType(contentType string) bool {
	ct := ExtractContentType(contentType)

	switch ct {
	case "audio/mpeg", "audio/mp3", "audio/aac", "audio/aacp",
		"audio/ogg", "application/ogg", "audio/flac", "audio/x-flac",
		"audio/wav", "audio/wave", "audio/webm":
		return true
	}
	return strings.HasPrefix(ct, "audio/")
}

// CodecFromContentType maps a content type to a codec hint for display.
// The session engine never decodes; the hint is forwarded to the playback sink.
func CodecFromContentType(contentType string) string {
	ct := ExtractContentType(contentType)

	switch {
	case strings.Contains(ct, "mpeg") || ct == "audio/mp3":
		return "mp3"
	case strings.Contains(ct, "aac"):
		return "aac"
	case strings.Contains(ct, "ogg") || strings.Contains(ct, "vorbis"):
		return "ogg"
	case strings.Contains(ct, "opus") || strings.Contains(ct, "webm"):
		return "opus"
	case strings.Contains(ct, "flac"):
		return "flac"
	case ct == "audio/wav" || ct == "audio/wave":
		return "pcm"
	default:
		return strings.TrimPrefix(ct, "audio/")
	}
}

// StationNameFromURL derives a display name for a station whose server sends
// no icy-name header. It keeps the main domain label, strips common streaming
// affixes, and falls back to the bare host.
func StationNameFromURL(streamURL string) string {
	u, err := url.Parse(streamURL)
	if err != nil || u.Hostname() == "" {
		return "Unknown Station"
	}

	host := strings.ToLower(u.Hostname())
	host = strings.TrimPrefix(host, "www.")

	parts := strings.Split(host, ".")
	if len(parts) >= 2 {
		main := parts[len(parts)-2]
		for _, affix := range []string{"stream", "radio", "cast"} {
			main = strings.ReplaceAll(main, affix, "")
		}
		main = strings.Trim(main, "-_")
		if main != "" {
			return titleCaser.String(main) + " Radio"
		}
	}

	return titleCaser.String(host) + " Radio"
}
