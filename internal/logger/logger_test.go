package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"portfolio/internal/config"
)

func TestNewWritesRotatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.log")
	log, err := New(config.LogConfig{Level: "debug", Encoding: "json", File: path, MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	log.Info("merge finished")
	_ = log.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read err=%v", err)
	}
	if !strings.Contains(string(b), `"msg":"merge finished"`) {
		t.Fatalf("file=%s", b)
	}
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	log, err := New(config.LogConfig{Level: "loud", Encoding: "console"})
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	if log.Core().Enabled(-1) {
		t.Fatalf("debug should be disabled at info level")
	}
}
