package subscription

import (
	"encoding/json"
	"io/ioutil"

	extErrors "github.com/pkg/errors"
)

// Price describes one purchasable billing interval of a Plan.
// StripePriceID corresponds to a Price created out-of-band on Stripe.
type Price struct {
	Interval      string `json:"interval"` // "monthly" or "yearly"
	AmountInCents int64  `json:"amountInCents"`
	StripePriceID string `json:"stripePriceId"`
}

// Plan describes a subscription tier. The catalog is static configuration:
// loaded once at process start and never mutated at runtime.
type Plan struct {
	Tier                Tier     `json:"tier"`
	Name                string   `json:"name"`
	Description         string   `json:"description"`
	MonthlyRequestLimit int64    `json:"monthlyRequestLimit"`
	MaxDailyRequests    int64    `json:"maxDailyRequests"`   // only set (and only enforced) for the trial tier
	ReservedForReports  int64    `json:"reservedForReports"` // sub-quota for report generation requests
	Highlighted         bool     `json:"highlighted"`
	Features            []string `json:"features"` // display only, never enforced by the admission gate
	Prices              []Price  `json:"prices"`
}

// IsFree reports whether the plan can be started without payment
func (p *Plan) IsFree() bool {
	return p.Tier == TierFreeTrial
}

func (p *Plan) priceForInterval(interval string) *Price {
	for k, price := range p.Prices {
		if price.Interval == interval {
			return &p.Prices[k]
		}
	}
	return nil
}

// loadPlansFromFile will read from the plan JSON file to define what plans are available.
// Limits in the file are authoritative; changing them takes effect on the next process start.
func loadPlansFromFile(filename string) ([]Plan, error) {
	jsonBytes, err := ioutil.ReadFile(filename)
	if err != nil {
		return nil, extErrors.Wrap(err, "Cannot open plans JSON file")
	}
	plans := make([]Plan, 0, 3)
	if err := json.Unmarshal(jsonBytes, &plans); err != nil {
		return nil, extErrors.Wrap(err, "Invalid plan JSON file")
	}
	return plans, nil
}
