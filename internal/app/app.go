package app

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/vk/taskbed/internal/publish"
)

// App encapsulates the application's dependencies, configuration, and
// lifecycle.
type App struct {
	outW       io.Writer
	logger     *slog.Logger
	inv        *Invocation
	baseEnv    []string
	uploader   *publish.Uploader
	httpServer *http.Server
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance with its own isolated logger and the environment
// every external command will inherit.
func NewApp(outW io.Writer, inv *Invocation) *App {
	logger := newLogger(inv.Global.LogLevel, inv.Global.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	baseEnv, err := baseEnviron([]string{inv.Global.EnvFile}, nil)
	if err != nil {
		// A failure to load the environment is a fatal startup error.
		panic(fmt.Errorf("failed to load environment: %w", err))
	}
	logger.Debug("Base environment assembled.", "variables", len(baseEnv))

	return &App{
		outW:     outW,
		logger:   logger,
		inv:      inv,
		baseEnv:  baseEnv,
		uploader: publish.NewUploader(),
	}
}
