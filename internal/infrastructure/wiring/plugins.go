package wiring

import (
	"path/filepath"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/pkg/application"
	"github.com/felixgeelhaar/crew/pkg/domain/agent"
	"github.com/felixgeelhaar/crew/pkg/plugin"
)

// LoadPlugins starts the configured plugin binaries and registers their
// agents. A plugin that fails to start is logged and skipped, so stages
// naming it report the agent as missing. A plugin may replace a built-in
// agent but never the orchestrator.
func LoadPlugins(root string, cfg *config.Config, reg *agent.Registry, logger *zap.Logger) *plugin.Loader {
	if len(cfg.Agents.Plugins) == 0 {
		return nil
	}
	loader := plugin.NewLoader()
	for _, p := range cfg.Agents.Plugins {
		path := p
		if !filepath.IsAbs(path) {
			path = filepath.Join(root, path)
		}
		a, err := loader.Load(path)
		if err != nil {
			logger.Warn("skipping agent plugin", zap.String("path", path), zap.Error(err))
			continue
		}
		if a.ID() == application.OrchestratorID {
			logger.Warn("plugin cannot replace the orchestrator", zap.String("path", path))
			continue
		}
		if _, exists := reg.Get(a.ID()); exists {
			logger.Info("plugin replaces built-in agent", zap.String("agent", a.ID()))
		}
		reg.Register(a.ID(), a)
		logger.Debug("loaded agent plugin", zap.String("agent", a.ID()), zap.String("phase", string(a.Phase())))
	}
	return loader
}
