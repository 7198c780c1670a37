package wiring

import (
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/felixgeelhaar/crew/internal/infrastructure/config"
	"github.com/felixgeelhaar/crew/internal/infrastructure/webhook"
	"github.com/felixgeelhaar/crew/pkg/storage"
)

// DeadLetterFile collects webhook deliveries that failed every attempt.
const DeadLetterFile = "webhook-dead-letters.jsonl"

// NewNotifier builds the webhook notifier for the enabled endpoints in cfg,
// or returns nil when none are enabled.
func NewNotifier(root string, cfg *config.Config, logger *zap.Logger) *webhook.Notifier {
	var endpoints []webhook.Endpoint
	for _, w := range cfg.Notify.Webhooks {
		if !w.Enabled {
			continue
		}
		endpoints = append(endpoints, webhook.Endpoint{
			Name:        w.Name,
			URL:         w.URL,
			Secret:      w.Secret,
			Format:      w.Format,
			Events:      w.Events,
			MaxAttempts: w.MaxAttempts,
			RetryDelay:  time.Duration(w.RetryDelayMS) * time.Millisecond,
		})
	}
	if len(endpoints) == 0 {
		return nil
	}
	dl := webhook.NewDeadLetterStore(filepath.Join(root, storage.CrewDir, DeadLetterFile))
	return webhook.NewNotifier(endpoints, dl, logger)
}
