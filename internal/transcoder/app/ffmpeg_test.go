package app

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseProbeOutput(t *testing.T) {
	raw := []byte(`{
		"streams": [
			{"codec_type": "audio"},
			{"codec_type": "video", "width": 1920, "height": 1080}
		],
		"format": {"duration": "125.6"}
	}`)

	meta := parseProbeOutput(raw)
	require.NotNil(t, meta.DurationSec)
	require.NotNil(t, meta.Width)
	require.NotNil(t, meta.Height)
	assert.InDelta(t, 125.6, *meta.DurationSec, 0.0001)
	assert.Equal(t, 1920, *meta.Width)
	assert.Equal(t, 1080, *meta.Height)
}

func TestParseProbeOutputAudioOnly(t *testing.T) {
	meta := parseProbeOutput([]byte(`{"streams":[{"codec_type":"audio"}],"format":{}}`))
	assert.Nil(t, meta.Width)
	assert.Nil(t, meta.Height)
	assert.Nil(t, meta.DurationSec)
}

func TestParseProbeOutputGarbage(t *testing.T) {
	meta := parseProbeOutput([]byte("not json"))
	assert.Nil(t, meta.DurationSec)
	assert.Nil(t, meta.Width)

	meta = parseProbeOutput([]byte(`{"format":{"duration":"N/A"}}`))
	assert.Nil(t, meta.DurationSec)
}

func TestTranscodedPath(t *testing.T) {
	assert.Equal(t, "tmp/abc.transcoded.mp4", TranscodedPath("tmp/abc.mov"))
	assert.Equal(t, "tmp/abc.transcoded.mp4", TranscodedPath("tmp/abc"))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "cde", tail([]byte("abcde"), 3))
	assert.Equal(t, "ab", tail([]byte("ab"), 3))
}
