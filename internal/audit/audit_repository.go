package audit

import (
	"context"

	"github.com/khanghh/donorshield/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AlertRepository interface {
	RecordAlert(ctx context.Context, alert *model.SecurityAlert) error
}

type alertRepository struct {
	db *gorm.DB
}

// RecordAlert inserts alert once. Replaying the same alert id is a no-op.
func (r *alertRepository) RecordAlert(ctx context.Context, alert *model.SecurityAlert) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "alert_id"}}, DoNothing: true}).
		Create(alert).Error
}

func NewAlertRepository(db *gorm.DB) AlertRepository {
	return &alertRepository{
		db: db,
	}
}
