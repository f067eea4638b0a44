package broker

import (
	"context"
)

// SummaryRequest asks a worker to generate the daily summary for one project.
// Date is formatted as YYYY-MM-DD.
type SummaryRequest struct {
	OrganizationID string `json:"organizationId"`
	ProjectID      string `json:"projectId"`
	Date           string `json:"date"`
}

// Producer defines a producer sending requests via message broker
type Producer interface {
	Close()
	SendSummaryRequest(p *SummaryRequest) error
}

// Consumer defines a consumer receiving requests via message broker
type Consumer interface {
	Close()
	ReceiveSummaryRequests(ctx context.Context) (<-chan *SummaryRequest, error)
}
