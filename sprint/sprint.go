package sprint

import (
	"fmt"
	"time"
)

// Status is the custom type to define the current state of a sprint
type Status string

// Defining the states a Sprint moves through
const (
	StatusPlanned   Status = "PLANNED"
	StatusActive    Status = "ACTIVE"
	StatusCompleted Status = "COMPLETED"
)

// Sprint is a time-boxed iteration within a project
type Sprint struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	ProjectID string    `json:"projectId" gorm:"index:idx_project_name,unique"`
	Name      string    `json:"name" gorm:"index:idx_project_name,unique"`
	Status    Status    `json:"status"`
	StartDate time.Time `json:"startDate"`
	EndDate   time.Time `json:"endDate"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// validateTransition enforces the sprint state machine: a sprint can only be
// started within its date range, and only an active sprint can be completed.
func validateTransition(current Status, next Status, startDate, endDate, now time.Time) error {
	switch next {
	case StatusActive:
		if current != StatusPlanned {
			return fmt.Errorf("can only start a planned sprint")
		}
		if now.Before(startDate) || now.After(endDate) {
			return fmt.Errorf("cannot start sprint outside of its date range")
		}
	case StatusCompleted:
		if current != StatusActive {
			return fmt.Errorf("can only complete an active sprint")
		}
	case StatusPlanned:
		return fmt.Errorf("cannot move a sprint back to planned")
	default:
		return fmt.Errorf("unknown sprint status %s", next)
	}
	return nil
}
