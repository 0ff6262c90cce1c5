package logging

import (
	"testing"

	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zapcore.Level
	}{
		{"", zapcore.InfoLevel},
		{"info", zapcore.InfoLevel},
		{"DEBUG", zapcore.DebugLevel},
		{" warn ", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseLevel(tt.input)
			assert.NoError(t, err)
			check.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("verbose")
	check.Error(t, err)
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		t.Run(format, func(t *testing.T) {
			logger, err := New("warn", format)
			assert.NoError(t, err)
			assert.NotNil(t, logger)
			check.False(t, logger.Core().Enabled(zapcore.InfoLevel))
			check.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
		})
	}

	logger, err := New("loud", "json")
	check.Error(t, err)
	check.True(t, logger == nil)
}

func TestNop(t *testing.T) {
	logger := Nop()
	assert.NotNil(t, logger)
	check.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
