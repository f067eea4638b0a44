package organization

import "time"

// ContextKey is a defined type to be used in context.Context containing the Organization
type ContextKey string

// Context is the key used in context.Context containing the resolved Organization
const Context ContextKey = "organizationContext"

// Role is the custom type for a member's role within an Organization
type Role string

// Defining the roles a Membership can have
const (
	RoleAdmin  Role = "Admin"
	RoleMember Role = "Member"
)

// Organization is the tenant: the unit of subscription and quota
type Organization struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug" gorm:"uniqueIndex"`
	CreatedAt time.Time `json:"createdAt"`
}

// Membership ties a user to an organization with a role
type Membership struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	OrganizationID string    `json:"organizationId" gorm:"index:idx_org_user,unique"`
	UserID         string    `json:"userId" gorm:"index:idx_org_user,unique"`
	Role           Role      `json:"role"`
	CreatedAt      time.Time `json:"createdAt"`
}
