package summary

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// StatusCounts stores the per-column issue totals of a board snapshot
type StatusCounts map[string]int64

func (s *StatusCounts) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("Failed to unmarshal jsonb value: %s", value)
	}
	if len(raw) == 0 {
		*s = make(StatusCounts)
		return nil
	}
	return json.Unmarshal(raw, &s)
}

func (s StatusCounts) Value() (driver.Value, error) {
	return json.Marshal(s)
}

func (*StatusCounts) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "mysql", "sqlite":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}

// DailySummary is a generated progress digest for a project on a given day.
// Date is stored as YYYY-MM-DD.
type DailySummary struct {
	ID             string       `json:"id" gorm:"primaryKey"`
	OrganizationID string       `json:"organizationId" gorm:"index"`
	ProjectID      string       `json:"projectId" gorm:"index:idx_project_date,unique"`
	Date           string       `json:"date" gorm:"index:idx_project_date,unique"`
	Text           string       `json:"text"`
	StatusCounts   StatusCounts `json:"statusCounts"`
	CreatedAt      time.Time    `json:"createdAt"`
}
