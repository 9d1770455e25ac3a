package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trustbridge/auth/config"
	"github.com/trustbridge/auth/testutils"
)

func testAppConfig() *config.Config {
	cfg := testutils.GetTestConfig()
	cfg.Server = config.ServerConfig{Host: "127.0.0.1", Port: "0"}
	cfg.Database.AutoMigrate = true
	cfg.Log = config.LogConfig{Level: "error", Format: "console", Output: "stdout"}
	return cfg
}

func TestNew(t *testing.T) {
	application := New(testAppConfig())
	assert.NotNil(t, application)
}

func TestStartStop(t *testing.T) {
	application := New(testAppConfig())

	startCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, application.Start(startCtx))

	stopCtx, cancelStop := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelStop()
	require.NoError(t, application.Stop(stopCtx))
}
