package icecast

import "bytes"

// Shared fixtures for the negotiation and demuxing tests

var (
	// Response headers of a typical Icecast mount
	TestIcecastHeaders = map[string]string{
		"icy-name":     "Test Radio Station",
		"icy-genre":    "Rock",
		"icy-br":       "128",
		"icy-metaint":  "16000",
		"content-type": "audio/mpeg",
		"server":       "Icecast 2.4.4",
	}

	// Response headers of a Shoutcast v1 server
	TestShoutcastHeaders = map[string]string{
		"icy-name":    "SHOUTcast Test",
		"icy-br":      "96",
		"icy-metaint": "8192",
		"icy-notice2": "SHOUTcast Distributed Network Audio Server",
	}
)

// testAudio returns n deterministic non-null audio bytes
func testAudio(n int) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = byte(i%251 + 1)
	}
	return buf
}

// metadataBlock encodes a raw metadata string as a length byte plus
// null-padded payload, exactly as a server interleaves it
func metadataBlock(content string) []byte {
	padded := (len(content) + 15) / 16
	block := make([]byte, 1+padded*16)
	block[0] = byte(padded)
	copy(block[1:], content)
	return block
}

// titleBlock encodes a StreamTitle metadata block
func titleBlock(title string) []byte {
	return metadataBlock("StreamTitle='" + title + "';")
}

// interleave builds a wire stream: audio split at every interval bytes with
// one block from blocks injected at each boundary. Blocks repeat the last
// entry once exhausted.
func interleave(audio []byte, interval int, blocks ...[]byte) []byte {
	var out bytes.Buffer
	blockIdx := 0
	for len(audio) > 0 {
		n := interval
		if n > len(audio) {
			n = len(audio)
		}
		out.Write(audio[:n])
		audio = audio[n:]

		if n == interval {
			block := blocks[blockIdx]
			if blockIdx < len(blocks)-1 {
				blockIdx++
			}
			out.Write(block)
		}
	}
	return out.Bytes()
}

// keepAlive is a zero-length metadata block
var keepAlive = []byte{0}
