package logx

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewLogger(t *testing.T) {
	logger := NewLogger("observe")
	assert.NotNil(t, logger)
	assert.Equal(t, "observe", logger.component)
}

func TestDebugToggle(t *testing.T) {
	SetDebug(false)
	assert.False(t, IsDebugEnabled("observe"))

	SetDebug(true)
	defer SetDebug(false)
	assert.True(t, IsDebugEnabled("observe"))
}

func TestLogLevelsDoNotPanic(t *testing.T) {
	logger := NewLogger("test")
	assert.NotPanics(t, func() {
		logger.Debug("debug %d", 1)
		logger.Info("info %s", "x")
		logger.Warn("warn")
		logger.Error("error: %v", assert.AnError)
	})
}
