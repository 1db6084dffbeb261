// Package persistence provides the GORM implementation of the uptime store
// together with an in-memory store for local runs and tests.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

// Repository is the relational store behind the checker.
type Repository struct {
	db *gorm.DB
}

var _ uptime.Store = (*Repository)(nil)

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// AutoMigrate creates or updates the systems and system_downtime tables.
func (r *Repository) AutoMigrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&SystemModel{}, &DowntimeModel{}); err != nil {
		return fmt.Errorf("migrate tables: %w", err)
	}
	return nil
}

func (r *Repository) ListProbeableSystems(ctx context.Context) ([]uptime.Target, error) {
	var models []SystemModel
	if err := r.db.WithContext(ctx).
		Where("url IS NOT NULL AND url <> ''").
		Order("id asc").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list probeable systems: %w", err)
	}
	res := make([]uptime.Target, len(models))
	for i := range models {
		res[i] = toTarget(&models[i])
	}
	return res, nil
}

func (r *Repository) ListAllSystemIDs(ctx context.Context) ([]uint, error) {
	var ids []uint
	if err := r.db.WithContext(ctx).
		Model(&SystemModel{}).
		Order("id asc").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("list system ids: %w", err)
	}
	return ids, nil
}

// GetSystem loads one system.
func (r *Repository) GetSystem(ctx context.Context, id uint) (uptime.MonitoredSystem, error) {
	var m SystemModel
	if err := r.db.WithContext(ctx).First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uptime.MonitoredSystem{}, uptime.ErrSystemNotFound
		}
		return uptime.MonitoredSystem{}, fmt.Errorf("get system %d: %w", id, err)
	}
	return toSystem(&m), nil
}

func (r *Repository) GetSystemStatus(ctx context.Context, id uint) (uptime.Status, error) {
	var m SystemModel
	if err := r.db.WithContext(ctx).Select("id", "status").First(&m, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", uptime.ErrSystemNotFound
		}
		return "", fmt.Errorf("get status of system %d: %w", id, err)
	}
	return uptime.Status(m.Status), nil
}

func (r *Repository) SetSystemStatus(ctx context.Context, id uint, status uptime.Status, lastCheck time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&SystemModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":     string(status),
			"last_check": lastCheck.UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("set status of system %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return uptime.ErrSystemNotFound
	}
	return nil
}

// InsertOpenInterval opens an outage. The system row is locked for the
// duration of the check-then-insert so two writers cannot both open one.
func (r *Repository) InsertOpenInterval(ctx context.Context, systemID uint, start time.Time, transition, errorDetail string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSystem(tx, systemID); err != nil {
			return err
		}
		var open int64
		if err := tx.Model(&DowntimeModel{}).
			Where("system_id = ? AND up_time IS NULL", systemID).
			Count(&open).Error; err != nil {
			return fmt.Errorf("count open intervals: %w", err)
		}
		if open > 0 {
			return uptime.ErrOpenIntervalExists
		}
		m := &DowntimeModel{
			SystemID:        systemID,
			DownTime:        start.UTC(),
			StateTransition: transition,
			ErrorMessage:    errorDetail,
		}
		if err := tx.Create(m).Error; err != nil {
			return fmt.Errorf("insert downtime interval: %w", err)
		}
		return nil
	})
}

// CloseLatestOpenInterval finds the newest open interval and closes it in
// one transaction. The conditional update only matches a still-open row, so
// a retried close cannot close twice.
func (r *Repository) CloseLatestOpenInterval(ctx context.Context, systemID uint, end time.Time) (uptime.DowntimeInterval, error) {
	var closed DowntimeModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSystem(tx, systemID); err != nil {
			return err
		}
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("system_id = ? AND up_time IS NULL", systemID).
			Order("down_time desc").
			Order("id desc").
			First(&closed).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return uptime.ErrNoOpenInterval
			}
			return fmt.Errorf("find open interval: %w", err)
		}

		upTime := end.UTC()
		duration := uptime.DowntimeMinutes(closed.DownTime, upTime)
		res := tx.Model(&DowntimeModel{}).
			Where("id = ? AND up_time IS NULL", closed.ID).
			Updates(map[string]any{
				"up_time":          upTime,
				"duration_minutes": duration,
			})
		if res.Error != nil {
			return fmt.Errorf("close interval %d: %w", closed.ID, res.Error)
		}
		if res.RowsAffected == 0 {
			return uptime.ErrNoOpenInterval
		}
		closed.UpTime = &upTime
		closed.DurationMinutes = &duration
		return nil
	})
	if err != nil {
		return uptime.DowntimeInterval{}, err
	}
	return toInterval(&closed), nil
}

func (r *Repository) ListIntervalsInWindow(ctx context.Context, systemID uint, since time.Time) ([]uptime.DowntimeInterval, error) {
	var models []DowntimeModel
	if err := r.db.WithContext(ctx).
		Where("system_id = ? AND down_time >= ?", systemID, since.UTC()).
		Order("down_time asc").
		Order("id asc").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("list intervals of system %d: %w", systemID, err)
	}
	res := make([]uptime.DowntimeInterval, len(models))
	for i := range models {
		res[i] = toInterval(&models[i])
	}
	return res, nil
}

func (r *Repository) SetUptimePercentage(ctx context.Context, id uint, percentage float64) error {
	res := r.db.WithContext(ctx).
		Model(&SystemModel{}).
		Where("id = ?", id).
		Update("uptime_percentage", percentage)
	// MySQL reports zero affected rows when the value is unchanged, so a
	// missing row is not detected here.
	if res.Error != nil {
		return fmt.Errorf("set uptime of system %d: %w", id, res.Error)
	}
	return nil
}

// DeleteSystem removes a system; its intervals go with it.
func (r *Repository) DeleteSystem(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("system_id = ?", id).Delete(&DowntimeModel{}).Error; err != nil {
			return fmt.Errorf("delete intervals of system %d: %w", id, err)
		}
		res := tx.Delete(&SystemModel{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete system %d: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			return uptime.ErrSystemNotFound
		}
		return nil
	})
}

func lockSystem(tx *gorm.DB, systemID uint) error {
	var m SystemModel
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&m, systemID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uptime.ErrSystemNotFound
		}
		return fmt.Errorf("lock system %d: %w", systemID, err)
	}
	return nil
}
