package persistence

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"gorm.io/gorm/clause"

	"github.com/amartya2002/uptime-monitor-core/uptime"
)

// SystemSeed is one entry of a roster file.
type SystemSeed struct {
	Name   string        `json:"name"`
	Type   string        `json:"type,omitempty"`
	Agency string        `json:"agency,omitempty"`
	URL    string        `json:"url,omitempty"`
	Status uptime.Status `json:"status,omitempty"`
}

// LoadSeedFile reads a JSON array of systems. Entries without a name are
// rejected; a missing status defaults to Up.
func LoadSeedFile(path string) ([]SystemSeed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	var seeds []SystemSeed
	if err := json.Unmarshal(data, &seeds); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	for i := range seeds {
		if seeds[i].Name == "" {
			return nil, fmt.Errorf("seed entry %d is missing a name", i)
		}
		if seeds[i].Status == "" {
			seeds[i].Status = uptime.StatusUp
		}
	}
	return seeds, nil
}

// ImportSystems inserts the seeds, updating type, agency and URL of systems
// that already exist by name. Status and uptime of existing rows are kept.
func (r *Repository) ImportSystems(ctx context.Context, seeds []SystemSeed) (int, error) {
	if len(seeds) == 0 {
		return 0, nil
	}
	models := make([]SystemModel, len(seeds))
	for i, s := range seeds {
		status := s.Status
		if status == "" {
			status = uptime.StatusUp
		}
		models[i] = SystemModel{
			Name:             s.Name,
			Type:             s.Type,
			Agency:           s.Agency,
			URL:              optionalString(s.URL),
			Status:           string(status),
			UptimePercentage: 100,
		}
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"type", "agency", "url"}),
	}).CreateInBatches(models, 100).Error
	if err != nil {
		return 0, fmt.Errorf("import systems: %w", err)
	}
	return len(models), nil
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
