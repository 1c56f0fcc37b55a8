package playlist

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RyanBlaney/stream-session/pkg/stream/common"
)

const samplePLS = `[playlist]
NumberOfEntries=3
File1=http://stream1.example.com:8000/live
Title1=Primary Relay
Length1=-1
File2=http://stream2.example.com:8000/live
Title2=Backup Relay
Length2=-1
File3=http://stream3.example.com:8000/live
Title3=Last Resort
Length3=-1
Version=2
`

func TestParsePLS(t *testing.T) {
	pls, err := ParsePLS(strings.NewReader(samplePLS))
	require.NoError(t, err)

	assert.Equal(t, 3, pls.NumberOfEntries)
	require.Len(t, pls.Entries, 3)
	assert.Equal(t, "http://stream1.example.com:8000/live", pls.Entries[0].URL)
	assert.Equal(t, "Primary Relay", pls.Entries[0].Title)
	assert.Equal(t, -1, pls.Entries[0].Length)
	assert.Equal(t, "http://stream3.example.com:8000/live", pls.Entries[2].URL)
}

func TestParsePLSOrdering(t *testing.T) {
	// Out-of-order keys must still yield entries sorted by index.
	body := `[playlist]
File3=http://c.example.com/stream
File1=http://a.example.com/stream
File2=http://b.example.com/stream
NumberOfEntries=3
`
	pls, err := ParsePLS(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, pls.Entries, 3)
	assert.Equal(t, "http://a.example.com/stream", pls.Entries[0].URL)
	assert.Equal(t, "http://b.example.com/stream", pls.Entries[1].URL)
	assert.Equal(t, "http://c.example.com/stream", pls.Entries[2].URL)
}

func TestParsePLSCaseInsensitiveKeys(t *testing.T) {
	body := `[PLAYLIST]
file1=http://a.example.com/stream
numberofentries=1
`
	pls, err := ParsePLS(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, pls.Entries, 1)
	assert.Equal(t, "http://a.example.com/stream", pls.Entries[0].URL)
}

func TestParsePLSDeclaredCountWins(t *testing.T) {
	body := `[playlist]
NumberOfEntries=1
File1=http://a.example.com/stream
File2=http://stale.example.com/stream
`
	pls, err := ParsePLS(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, pls.Entries, 1)
	assert.Equal(t, "http://a.example.com/stream", pls.Entries[0].URL)
}

func TestParsePLSMissingHeader(t *testing.T) {
	body := `File1=http://a.example.com/stream
NumberOfEntries=1
`
	_, err := ParsePLS(strings.NewReader(body))
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeInvalidPlaylist, common.ErrorCode(err))
}

func TestParsePLSNoFileEntries(t *testing.T) {
	body := `[playlist]
NumberOfEntries=0
Version=2
`
	_, err := ParsePLS(strings.NewReader(body))
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeInvalidPlaylist, common.ErrorCode(err))
}

func TestParsePLSEmptyBody(t *testing.T) {
	_, err := ParsePLS(strings.NewReader(""))
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeInvalidPlaylist, common.ErrorCode(err))
}

func TestParsePLSIgnoresCommentsAndBlankLines(t *testing.T) {
	body := `
; generated by a Shoutcast server
[playlist]

File1=http://a.example.com/stream

NumberOfEntries=1
`
	pls, err := ParsePLS(strings.NewReader(body))
	require.NoError(t, err)
	assert.Len(t, pls.Entries, 1)
}

func TestParsePLSSkipsEmptyFileValues(t *testing.T) {
	body := `[playlist]
File1=
File2=http://b.example.com/stream
NumberOfEntries=2
`
	pls, err := ParsePLS(strings.NewReader(body))
	require.NoError(t, err)
	require.Len(t, pls.Entries, 1)
	assert.Equal(t, "http://b.example.com/stream", pls.Entries[0].URL)
}

func TestParseM3U(t *testing.T) {
	t.Run("plain m3u", func(t *testing.T) {
		body := "http://stream.example.com:8000/live\n"
		url, ok := parseM3U(strings.NewReader(body))
		require.True(t, ok)
		assert.Equal(t, "http://stream.example.com:8000/live", url)
	})

	t.Run("extended m3u", func(t *testing.T) {
		body := `#EXTM3U
#EXTINF:-1,Example Radio
https://stream.example.com/high.aac
`
		url, ok := parseM3U(strings.NewReader(body))
		require.True(t, ok)
		assert.Equal(t, "https://stream.example.com/high.aac", url)
	})

	t.Run("no url lines", func(t *testing.T) {
		_, ok := parseM3U(strings.NewReader("#EXTM3U\n#EXTINF:-1,nothing\n"))
		assert.False(t, ok)
	})
}
