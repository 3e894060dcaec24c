package logger_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/telemetry-agent/pkg/config"
	"github.com/telemetry-agent/pkg/logger"
)

func TestLoggerLevels(t *testing.T) {
	cfg := config.ZapLogConfig{
		Level:   "debug",
		Format:  "console",
		Path:    t.TempDir(),
		MaxSize: 1,
		MaxAge:  1,
	}

	require.NoError(t, logger.Init(cfg))

	logger.Debug("debug msg")
	logger.Info("info msg", zap.String("k", "v"))
	logger.Warn("warn msg")
	logger.Error("error msg")

	assert.NotNil(t, logger.GetLogger())

	// second Init is a no-op, not an error
	require.NoError(t, logger.Init(cfg))

	_ = logger.Sync()
}
