package logging

import (
	"bytes"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("INFO"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(" warn "))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(""))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel("bogus"))
	assert.Equal(t, zerolog.ErrorLevel, ParseLevel("error"))
}

func TestSetupFiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	Setup("error", false, &buf)
	defer Setup("", false, nil)

	Info().Msg("hidden")
	Error().Msg("visible")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "visible")
}

func TestForTagsComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup("debug", false, &buf)
	defer Setup("", false, nil)

	log := For("stream")
	log.Info().Msg("connected")

	assert.True(t, strings.Contains(buf.String(), `"component":"stream"`), "got %s", buf.String())
}
