// Package bootstrap wires configuration into a ready Analyzer.
package bootstrap

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/straja-ai/aidetect/internal/analyzer"
	"github.com/straja-ai/aidetect/internal/config"
	"github.com/straja-ai/aidetect/internal/engine/onnx"
	"github.com/straja-ai/aidetect/internal/modelstore"
	"github.com/straja-ai/aidetect/internal/telemetry"
)

// Runtime bundles the pieces built from one Config.
type Runtime struct {
	Store    *modelstore.Store
	Loader   *onnx.Loader
	Metrics  *telemetry.Provider
	Analyzer *analyzer.Analyzer
}

// NewStore returns a model store honoring the GCS endpoint override.
func NewStore(cfg config.ModelConfig, log *zap.Logger) *modelstore.Store {
	return modelstore.New(cfg.CacheDir, log, modelstore.WithStorageOptions(StorageOptions(cfg)...))
}

// StorageOptions returns the GCS client options for cfg. A custom endpoint
// skips authentication so emulators work.
func StorageOptions(cfg config.ModelConfig) []option.ClientOption {
	if cfg.GCSEndpoint == "" {
		return nil
	}
	return []option.ClientOption{
		option.WithEndpoint(cfg.GCSEndpoint),
		option.WithoutAuthentication(),
	}
}

// New resolves the configured model and loads it.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.NewNop()
	}
	rt := &Runtime{
		Store:   NewStore(cfg.Model, log),
		Loader:  onnx.NewLoader(cfg.Model.LibraryPath, log),
		Metrics: telemetry.NewProvider(telemetry.Config{Enabled: cfg.Telemetry.Enabled}),
	}

	local, err := rt.Store.Resolve(ctx, cfg.Model.Path, cfg.Model.SHA256)
	if err != nil {
		return nil, fmt.Errorf("resolve model: %w", err)
	}
	a, err := analyzer.New(rt.Loader, local,
		analyzer.WithLogger(log),
		analyzer.WithMetrics(rt.Metrics),
	)
	if err != nil {
		return nil, err
	}
	rt.Analyzer = a
	return rt, nil
}

// Close releases the analyzer.
func (rt *Runtime) Close() error {
	if rt == nil || rt.Analyzer == nil {
		return nil
	}
	return rt.Analyzer.Close()
}
