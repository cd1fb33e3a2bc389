package logging

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewLoggerLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, NewLogger(Config{Level: "DEBUG"}, "signalfeed").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(Config{Level: "nonsense"}, "signalfeed").GetLevel())
	assert.Equal(t, zerolog.InfoLevel, NewLogger(Config{}, "").GetLevel())
}

func TestLogWriterSelectsConsole(t *testing.T) {
	_, ok := logWriter(Config{Format: "console", Output: "stderr"}).(zerolog.ConsoleWriter)
	assert.True(t, ok)

	_, ok = logWriter(Config{Format: "json"}).(zerolog.ConsoleWriter)
	assert.False(t, ok)
}
