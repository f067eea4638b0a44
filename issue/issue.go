package issue

import (
	"time"
)

// Status is the custom type to define the Kanban column of an issue
type Status string

// Defining the Kanban columns an issue moves through
const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusInReview   Status = "IN_REVIEW"
	StatusDone       Status = "DONE"
)

// Priority is the custom type to define how urgent an issue is
type Priority string

// Defining the priorities of an issue
const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
	PriorityUrgent Priority = "URGENT"
)

// Issue is a unit of work on a project's Kanban board.
// Order determines the position within a column, lowest first.
type Issue struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	ProjectID   string    `json:"projectId" gorm:"index"`
	SprintID    string    `json:"sprintId" gorm:"index"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status" gorm:"index"`
	Priority    Priority  `json:"priority"`
	Order       int       `json:"order"`
	AssigneeID  string    `json:"assigneeId"`
	ReporterID  string    `json:"reporterId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func validStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusInReview, StatusDone:
		return true
	}
	return false
}

func validPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}
