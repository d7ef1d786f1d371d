// Package audit archives security alerts to SQL for review after they have
// expired from the key-value store.
package audit

import (
	"context"

	"github.com/khanghh/donorshield/internal/security"
	"github.com/khanghh/donorshield/model"
)

func toModel(alert *security.Alert) *model.SecurityAlert {
	return &model.SecurityAlert{
		AlertID:     alert.ID,
		EventType:   string(alert.Type),
		Severity:    alert.Severity.String(),
		Identifier:  alert.Identifier,
		Count:       alert.Count,
		WindowMs:    alert.WindowMs,
		Threshold:   alert.Threshold,
		TriggeredAt: alert.Time(),
	}
}

type AlertArchive struct {
	repo AlertRepository
}

func (a *AlertArchive) NotifyAlert(ctx context.Context, alert security.Alert) error {
	return a.repo.RecordAlert(ctx, toModel(&alert))
}

func NewAlertArchive(repo AlertRepository) *AlertArchive {
	return &AlertArchive{
		repo: repo,
	}
}
