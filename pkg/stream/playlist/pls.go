package playlist

import (
	"bufio"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

// Entry is a single candidate stream in a PLS playlist
type Entry struct {
	Index  int    `json:"index"`
	URL    string `json:"url"`
	Title  string `json:"title,omitempty"`
	Length int    `json:"length,omitempty"`
}

// Playlist is a parsed PLS file with its entries in ascending index order
type Playlist struct {
	NumberOfEntries int     `json:"number_of_entries"`
	Entries         []Entry `json:"entries"`
}

// ParsePLS parses a PLS-format playlist body. The [playlist] section header is
// required and at least one FileN= entry must be present; anything else yields
// an INVALID_PLAYLIST error. Entries beyond a declared NumberOfEntries are
// dropped when the declaration and the entry list disagree.
func ParsePLS(r io.Reader) (*Playlist, error) {
	entries := make(map[int]*Entry)
	numberOfEntries := 0
	sawHeader := false

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}

		if strings.HasPrefix(line, "[") {
			sawHeader = sawHeader || strings.EqualFold(line, "[playlist]")
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch {
		case strings.EqualFold(key, "NumberOfEntries"):
			if n, err := strconv.Atoi(value); err == nil {
				numberOfEntries = n
			}
		case hasIndexedPrefix(key, "File"):
			if idx, ok := entryIndex(key, "File"); ok && value != "" {
				entryAt(entries, idx).URL = value
			}
		case hasIndexedPrefix(key, "Title"):
			if idx, ok := entryIndex(key, "Title"); ok {
				entryAt(entries, idx).Title = value
			}
		case hasIndexedPrefix(key, "Length"):
			if idx, ok := entryIndex(key, "Length"); ok {
				if n, err := strconv.Atoi(value); err == nil {
					entryAt(entries, idx).Length = n
				}
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, common.NewStreamError(common.StreamTypeShoutcast, "",
			common.ErrCodeInvalidPlaylist, "failed to read playlist body", err)
	}

	if !sawHeader {
		return nil, common.NewStreamError(common.StreamTypeShoutcast, "",
			common.ErrCodeInvalidPlaylist, "missing [playlist] header", nil)
	}

	ordered := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.URL == "" {
			continue
		}
		ordered = append(ordered, *e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Index < ordered[j].Index })

	// A declared NumberOfEntries smaller than the entry list wins; trailing
	// entries are considered stale.
	if numberOfEntries > 0 && numberOfEntries < len(ordered) {
		ordered = ordered[:numberOfEntries]
	}

	if len(ordered) == 0 {
		return nil, common.NewStreamError(common.StreamTypeShoutcast, "",
			common.ErrCodeInvalidPlaylist, "playlist contains no File entries", nil)
	}

	return &Playlist{
		NumberOfEntries: numberOfEntries,
		Entries:         ordered,
	}, nil
}

func entryAt(entries map[int]*Entry, idx int) *Entry {
	e, ok := entries[idx]
	if !ok {
		e = &Entry{Index: idx}
		entries[idx] = e
	}
	return e
}

func hasIndexedPrefix(key, prefix string) bool {
	if len(key) <= len(prefix) || !strings.EqualFold(key[:len(prefix)], prefix) {
		return false
	}
	_, err := strconv.Atoi(key[len(prefix):])
	return err == nil
}

func entryIndex(key, prefix string) (int, bool) {
	idx, err := strconv.Atoi(key[len(prefix):])
	if err != nil || idx < 1 {
		return 0, false
	}
	return idx, true
}

// parseM3U extracts the first stream URL from an M3U/M3U8 body. Extended
// directives are ignored; the first non-comment URL line wins.
func parseM3U(r io.Reader) (string, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "http://") || strings.HasPrefix(line, "https://") {
			return line, true
		}
	}
	return "", false
}
