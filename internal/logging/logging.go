package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"match-reward-engine/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	outputMu sync.RWMutex
	output   io.Writer = os.Stdout
	fileOut  *sizeLimitedWriter
)

// Init configures the global zerolog logger. With cfg.File set, JSON lines go
// to both stdout and a size-limited file.
func Init(cfg config.LogConfig) error {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var base io.Writer = os.Stdout
	var file *sizeLimitedWriter
	if cfg.File != "" {
		w, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB)
		if err != nil {
			return err
		}
		file = w
		base = io.MultiWriter(os.Stdout, w)
	}

	var console io.Writer = base
	if cfg.Pretty {
		console = zerolog.ConsoleWriter{Out: base}
	}

	outputMu.Lock()
	if fileOut != nil {
		_ = fileOut.Close()
	}
	fileOut = file
	output = base
	outputMu.Unlock()

	zerolog.SetGlobalLevel(level)
	logger := zerolog.New(console).With().Timestamp().Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
	return nil
}

// Writer is the raw sink used by the HTTP request logger.
func Writer() io.Writer {
	outputMu.RLock()
	defer outputMu.RUnlock()
	return output
}

func Close() error {
	outputMu.Lock()
	defer outputMu.Unlock()
	if fileOut == nil {
		return nil
	}
	err := fileOut.Close()
	fileOut = nil
	output = os.Stdout
	return err
}
