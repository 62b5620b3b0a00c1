package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, time.Second, cfg.UploadDelay)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DOCDESK_ADDR", ":9090")
	t.Setenv("DOCDESK_UPLOAD_DELAY", "250ms")
	t.Setenv("DOCDESK_SESSION_TIMEOUT", "10m")
	t.Setenv("DOCDESK_MAX_PENDING_UPLOADS", "2")
	t.Setenv("DOCDESK_RATE_LIMIT_PER_HOUR", "100")
	t.Setenv("DOCDESK_RATE_LIMIT_BURST", "10")
	t.Setenv("DOCDESK_CANVAS_WIDTH", "600")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Addr)
	assert.Equal(t, 250*time.Millisecond, cfg.UploadDelay)
	assert.Equal(t, 10*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, int64(2), cfg.MaxPendingUploads)
	assert.Equal(t, 100, cfg.RateLimitPerHour)
	assert.Equal(t, 10, cfg.RateLimitBurst)
	assert.Equal(t, 600, cfg.CanvasWidth)
	assert.Equal(t, 150, cfg.CanvasHeight)
}

func TestLoadInvalid(t *testing.T) {
	tests := map[string]string{
		"DOCDESK_UPLOAD_DELAY":        "soon",
		"DOCDESK_SESSION_TIMEOUT":     "-1s",
		"DOCDESK_MAX_PENDING_UPLOADS": "0",
		"DOCDESK_RATE_LIMIT_BURST":    "many",
		"DOCDESK_CANVAS_WIDTH":        "100000",
		"DOCDESK_CANVAS_HEIGHT":       "4097",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRejectsZeroDurations(t *testing.T) {
	for _, key := range []string{"DOCDESK_UPLOAD_DELAY", "DOCDESK_SESSION_TIMEOUT"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "0s")
			_, err := Load()
			assert.ErrorContains(t, err, "must be a positive duration")
		})
	}
}
