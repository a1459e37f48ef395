package store

import (
	"context"
	"fmt"

	"github.com/synaptica-ai/capacity-planner/pkg/common/kafka"
	"github.com/synaptica-ai/capacity-planner/pkg/common/logger"
	"github.com/synaptica-ai/capacity-planner/pkg/common/models"
)

// TableLoader is the read side of the repository.
type TableLoader interface {
	LoadTables(ctx context.Context) (models.TableSet, error)
}

// BaselineReceiver accepts a freshly loaded baseline.
type BaselineReceiver interface {
	ReplaceBaseline(tables models.TableSet)
}

// Reload loads, validates and installs the baseline tables. Tables that fail
// validation are not installed.
func Reload(ctx context.Context, loader TableLoader, target BaselineReceiver) ([]models.Issue, error) {
	tables, err := loader.LoadTables(ctx)
	if err != nil {
		return nil, err
	}
	issues, err := Validate(tables)
	if err != nil {
		return nil, fmt.Errorf("reloaded tables rejected: %w", err)
	}
	target.ReplaceBaseline(tables)
	if len(issues) > 0 {
		logger.Log.WithField("warnings", len(issues)).Warn("Baseline tables loaded with gaps")
	}
	return issues, nil
}

// ReloadHandler reloads the baseline whenever a tables_updated event
// arrives. Other event types are ignored.
func ReloadHandler(loader TableLoader, target BaselineReceiver) kafka.EventHandler {
	return func(ctx context.Context, event models.Event) error {
		if event.Type != kafka.EventTablesUpdated {
			return nil
		}
		if _, err := Reload(ctx, loader, target); err != nil {
			return err
		}
		logger.Log.WithFields(map[string]interface{}{
			"event_id": event.ID,
			"source":   event.Source,
		}).Info("Baseline tables reloaded")
		return nil
	}
}
