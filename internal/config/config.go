package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shehryarbajwa/docdesk/internal/canvas"
)

// Config holds server settings read from the environment
type Config struct {
	Addr              string
	UploadDelay       time.Duration
	MaxPendingUploads int64
	SessionTimeout    time.Duration
	RateLimitPerHour  int
	RateLimitBurst    int
	MaxUploadMemory   int64
	CanvasWidth       int
	CanvasHeight      int
}

// Default returns the settings used when nothing is configured
func Default() Config {
	return Config{
		Addr:              ":8080",
		UploadDelay:       time.Second,
		MaxPendingUploads: 8,
		SessionTimeout:    time.Hour,
		RateLimitPerHour:  3600,
		RateLimitBurst:    60,
		MaxUploadMemory:   32 << 20,
		CanvasWidth:       canvas.DefaultWidth,
		CanvasHeight:      canvas.DefaultHeight,
	}
}

// Load reads DOCDESK_* variables on top of the defaults
func Load() (Config, error) {
	cfg := Default()

	if v := os.Getenv("DOCDESK_ADDR"); v != "" {
		cfg.Addr = v
	}
	if err := durationVar("DOCDESK_UPLOAD_DELAY", &cfg.UploadDelay); err != nil {
		return cfg, err
	}
	if err := durationVar("DOCDESK_SESSION_TIMEOUT", &cfg.SessionTimeout); err != nil {
		return cfg, err
	}
	if err := int64Var("DOCDESK_MAX_PENDING_UPLOADS", &cfg.MaxPendingUploads); err != nil {
		return cfg, err
	}
	if err := int64Var("DOCDESK_MAX_UPLOAD_MEMORY", &cfg.MaxUploadMemory); err != nil {
		return cfg, err
	}
	if err := intVar("DOCDESK_RATE_LIMIT_PER_HOUR", &cfg.RateLimitPerHour); err != nil {
		return cfg, err
	}
	if err := intVar("DOCDESK_RATE_LIMIT_BURST", &cfg.RateLimitBurst); err != nil {
		return cfg, err
	}
	if err := intVar("DOCDESK_CANVAS_WIDTH", &cfg.CanvasWidth); err != nil {
		return cfg, err
	}
	if err := intVar("DOCDESK_CANVAS_HEIGHT", &cfg.CanvasHeight); err != nil {
		return cfg, err
	}
	if !canvas.ValidSize(cfg.CanvasWidth, cfg.CanvasHeight) {
		return cfg, fmt.Errorf("invalid canvas size %dx%d: must not exceed %dx%d",
			cfg.CanvasWidth, cfg.CanvasHeight, canvas.MaxWidth, canvas.MaxHeight)
	}

	return cfg, nil
}

func durationVar(key string, dst *time.Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fmt.Errorf("invalid %s %q: must be a positive duration", key, v)
	}
	*dst = d
	return nil
}

func int64Var(key string, dst *int64) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("invalid %s %q: must be a positive integer", key, v)
	}
	*dst = n
	return nil
}

func intVar(key string, dst *int) error {
	var n int64
	if err := int64Var(key, &n); err != nil {
		return err
	}
	if n > 0 {
		*dst = int(n)
	}
	return nil
}
