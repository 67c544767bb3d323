package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name   string
		level  string
		format string
		want   zap.AtomicLevel
	}{
		{"console info", "info", "console", zap.NewAtomicLevelAt(zap.InfoLevel)},
		{"json debug", "debug", "json", zap.NewAtomicLevelAt(zap.DebugLevel)},
		{"empty format", "warn", "", zap.NewAtomicLevelAt(zap.WarnLevel)},
		{"upper case level", "ERROR", "console", zap.NewAtomicLevelAt(zap.ErrorLevel)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.level, tt.format)
			require.NoError(t, err)
			require.NotNil(t, logger)
			assert.True(t, logger.Core().Enabled(tt.want.Level()))
			assert.False(t, logger.Core().Enabled(tt.want.Level()-1))
		})
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New("chatty", "console")
	assert.Error(t, err)
}

func TestNew_InvalidFormat(t *testing.T) {
	_, err := New("info", "xml")
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	debug, err := NewLogger(true)
	require.NoError(t, err)
	assert.True(t, debug.Core().Enabled(zap.DebugLevel))

	prod, err := NewLogger(false)
	require.NoError(t, err)
	assert.False(t, prod.Core().Enabled(zap.DebugLevel))
	assert.True(t, prod.Core().Enabled(zap.InfoLevel))
}
