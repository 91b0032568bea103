package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"match-reward-engine/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestInitWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rewards.log")
	if err := Init(config.LogConfig{Level: "debug", File: path, MaxMB: 1}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer Close()

	if zerolog.GlobalLevel() != zerolog.DebugLevel {
		t.Fatalf("GlobalLevel = %v, want debug", zerolog.GlobalLevel())
	}
	log.Info().Str("match_id", "m-1").Msg("accepted")
	if _, err := Writer().Write([]byte("{\"raw\":true}\n")); err != nil {
		t.Fatalf("write raw: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(b)
	if !strings.Contains(out, `"match_id":"m-1"`) || !strings.Contains(out, `"raw":true`) {
		t.Fatalf("log file missing entries: %s", out)
	}
}

func TestInitIgnoresUnknownLevel(t *testing.T) {
	if err := Init(config.LogConfig{Level: "loud"}); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if zerolog.GlobalLevel() != zerolog.InfoLevel {
		t.Fatalf("GlobalLevel = %v, want info", zerolog.GlobalLevel())
	}
	if Writer() != os.Stdout {
		t.Fatal("Writer() should default to stdout without a file")
	}
}
