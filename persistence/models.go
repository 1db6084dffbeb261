package persistence

import (
	"time"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

// SystemModel is a row of the systems table.
type SystemModel struct {
	ID               uint       `gorm:"primaryKey"`
	Name             string     `gorm:"column:name;type:varchar(255);not null;uniqueIndex"`
	Type             string     `gorm:"column:type;type:varchar(100)"`
	Agency           string     `gorm:"column:agency;type:varchar(100);index"`
	URL              *string    `gorm:"column:url;type:varchar(500)"`
	Status           string     `gorm:"column:status;type:varchar(20);not null;default:Up"`
	UptimePercentage float64    `gorm:"column:uptime_percentage;type:decimal(5,2);not null;default:100"`
	LastCheck        *time.Time `gorm:"column:last_check"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Downtimes []DowntimeModel `gorm:"foreignKey:SystemID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

func (SystemModel) TableName() string { return "systems" }

// DowntimeModel is a row of the system_downtime table. A NULL up_time marks
// the open interval.
type DowntimeModel struct {
	ID              uint       `gorm:"primaryKey"`
	SystemID        uint       `gorm:"column:system_id;not null;index"`
	DownTime        time.Time  `gorm:"column:down_time;not null;index"`
	UpTime          *time.Time `gorm:"column:up_time;index"`
	DurationMinutes *int       `gorm:"column:duration_minutes"`
	StateTransition string     `gorm:"column:state_transition;type:varchar(50)"`
	ErrorMessage    string     `gorm:"column:error_message;type:text"`
	CreatedAt       time.Time
}

func (DowntimeModel) TableName() string { return "system_downtime" }

// mapping helpers

func toTarget(m *SystemModel) uptime.Target {
	return uptime.Target{
		ID:     m.ID,
		Name:   m.Name,
		URL:    derefString(m.URL),
		Status: uptime.Status(m.Status),
	}
}

func toSystem(m *SystemModel) uptime.MonitoredSystem {
	return uptime.MonitoredSystem{
		ID:               m.ID,
		Name:             m.Name,
		Type:             m.Type,
		Agency:           m.Agency,
		URL:              derefString(m.URL),
		Status:           uptime.Status(m.Status),
		UptimePercentage: m.UptimePercentage,
		LastCheck:        m.LastCheck,
	}
}

func toInterval(m *DowntimeModel) uptime.DowntimeInterval {
	return uptime.DowntimeInterval{
		ID:              m.ID,
		SystemID:        m.SystemID,
		DownTime:        m.DownTime.UTC(),
		UpTime:          utcPtr(m.UpTime),
		DurationMinutes: m.DurationMinutes,
		StateTransition: m.StateTransition,
		ErrorMessage:    m.ErrorMessage,
	}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
