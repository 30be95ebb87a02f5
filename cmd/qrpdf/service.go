package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/QuickTools-one/qr-pdf-compress/internal/codec"
	"github.com/QuickTools-one/qr-pdf-compress/internal/compress"
	"github.com/QuickTools-one/qr-pdf-compress/internal/config"
	"github.com/QuickTools-one/qr-pdf-compress/internal/merge"
	"github.com/QuickTools-one/qr-pdf-compress/internal/unit"
)

// buildService wires the codec, execution unit manager and merge coordinator
// into a compression service.
func buildService(cfg *config.Config, logger *slog.Logger) (*compress.Service, error) {
	factory, err := transportFactory(cfg)
	if err != nil {
		return nil, err
	}

	mgr, err := unit.NewManager(unit.ManagerConfig{Factory: factory, Logger: logger})
	if err != nil {
		return nil, fmt.Errorf("create unit manager: %w", err)
	}

	pdf := codec.NewPDFCPU()
	svc, err := compress.NewService(compress.ServiceConfig{
		Codec:  pdf,
		Units:  mgr,
		Merger: merge.NewCoordinator(mgr, pdf, logger),
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create compression service: %w", err)
	}
	return svc, nil
}

// transportFactory spawns execution contexts: by default this binary
// re-executed in worker mode, overridable for a dedicated worker build.
func transportFactory(cfg *config.Config) (unit.Factory, error) {
	args := cfg.Engine.WorkerArgs
	if len(args) == 0 {
		args = []string{"worker"}
	}
	if cmd := cfg.Engine.WorkerCommand; cmd != "" {
		return func() unit.Transport {
			return unit.NewProcessTransport(cmd, args...)
		}, nil
	}
	return unit.SelfFactory(args...)
}

// jobDefaults converts config defaults into job options.
func jobDefaults(cfg *config.Config) compress.Options {
	return compress.Options{
		Preset:             cfg.Defaults.Preset,
		ChunkSize:          cfg.Defaults.ChunkSize,
		MergeStrategy:      cfg.Defaults.MergeStrategy,
		Timeout:            time.Duration(cfg.Defaults.TimeoutSeconds) * time.Second,
		DisableDegradation: !cfg.Defaults.GracefulDegradation,
		ConstrainedDevice:  cfg.Defaults.ConstrainedDevice,
	}
}
