package project

import "time"

// Project groups sprints and issues within an organization
type Project struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	OrganizationID string    `json:"organizationId" gorm:"index:idx_org_key,unique"`
	Key            string    `json:"key" gorm:"index:idx_org_key,unique"` // short prefix used in issue references (e.g. TF-12)
	Name           string    `json:"name"`
	Description    string    `json:"description"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
