package providers

import (
	"github.com/samber/do/v2"
	"go.uber.org/zap"

	"github.com/cpritcha/catalog/internal/config"
	"github.com/cpritcha/catalog/internal/metrics"
	"github.com/cpritcha/catalog/internal/storage"
)

// StoreHandle wraps the database with shutdown capability.
type StoreHandle struct {
	*storage.DB
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the repository database.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	opts := do.MustInvoke[Options](i)
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*zap.Logger](i)

	path := cfg.ResolveDBPath(opts.Root)
	db, err := storage.OpenDB(path)
	if err != nil {
		return nil, err
	}
	log.Debug("database opened", zap.String("path", path))
	return &StoreHandle{DB: db}, nil
}

// MetricsHandle writes the counters to a textfile on shutdown when a
// metrics file is configured.
type MetricsHandle struct {
	*metrics.Metrics
	path string
	log  *zap.Logger
}

// Shutdown implements do.Shutdownable.
func (h *MetricsHandle) Shutdown() error {
	if h.path == "" {
		return nil
	}
	if err := h.WriteTextfile(h.path); err != nil {
		return err
	}
	h.log.Debug("metrics written", zap.String("path", h.path))
	return nil
}

// ProvideMetrics provides the command counters.
func ProvideMetrics(i do.Injector) (*MetricsHandle, error) {
	opts := do.MustInvoke[Options](i)
	global := do.MustInvoke[*config.GlobalConfig](i)
	log := do.MustInvoke[*zap.Logger](i)

	path := opts.MetricsFile
	if path == "" {
		path = global.MetricsFile
	}
	return &MetricsHandle{Metrics: metrics.New(), path: config.ExpandPath(path), log: log}, nil
}
