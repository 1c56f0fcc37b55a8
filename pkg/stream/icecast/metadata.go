package icecast

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// titleSeparators are the separators seen in the wild between artist and song
// inside a StreamTitle value, in the order they should be tried.
var titleSeparators = []string{" - ", " – ", " — ", ": ", " | ", " / ", " :: "}

// ParseICYTitle splits a raw stream title into artist and song.
// Titles without a recognizable separator are returned as song only.
func ParseICYTitle(icyTitle string) (artist, song string) {
	icyTitle = strings.TrimSpace(icyTitle)
	if icyTitle == "" {
		return "", ""
	}

	for _, sep := range titleSeparators {
		if strings.Contains(icyTitle, sep) {
			parts := strings.SplitN(icyTitle, sep, 2)
			artist := strings.TrimSpace(parts[0])
			song := strings.TrimSpace(parts[1])
			if artist != "" && song != "" {
				return artist, song
			}
		}
	}

	return "", icyTitle
}

// ParseMetadataBlock parses an ICY metadata block into key/value pairs.
// Blocks are null-padded to a multiple of 16 and encode pairs as key='value';
// A block that is not valid UTF-8 or contains no terminated pair yields ok=false.
func ParseMetadataBlock(block []byte) (map[string]string, bool) {
	raw := strings.TrimRight(string(block), "\x00")
	if raw == "" {
		return nil, true
	}
	if !utf8.ValidString(raw) {
		return nil, false
	}

	pairs := make(map[string]string)
	rest := raw
	for rest != "" {
		key, after, found := strings.Cut(rest, "='")
		if !found {
			break
		}
		value, after, found := strings.Cut(after, "';")
		if !found {
			// Unterminated pair: the block is malformed past this point.
			return pairs, len(pairs) > 0
		}
		pairs[strings.TrimSpace(key)] = value
		rest = after
	}

	return pairs, len(pairs) > 0
}

// metadataEvent builds a MetadataEvent from a parsed block, or ok=false when
// the block carries no StreamTitle.
func metadataEvent(pairs map[string]string) (common.MetadataEvent, bool) {
	title, ok := pairs["StreamTitle"]
	if !ok {
		return common.MetadataEvent{}, false
	}

	artist, song := ParseICYTitle(title)
	return common.MetadataEvent{
		StreamTitle: title,
		Artist:      artist,
		Song:        song,
		ReceivedAt:  time.Now(),
	}, true
}
