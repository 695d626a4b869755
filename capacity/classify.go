package capacity

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKLOAD CLASSIFIER - Fixed threshold policy
// =============================================================================
//
//   total > capacity               -> overloaded     (amount = total - capacity)
//   0 < total < 0.8 * capacity     -> underutilized  (amount = capacity - total)
//   otherwise                      -> nominal        (not reported)
//
// capacity is 100 for the percentage model and 1.0 for the FTE model.

type Status string

const (
	StatusOverloaded    Status = "overloaded"
	StatusUnderutilized Status = "underutilized"
	StatusNominal       Status = "nominal"
)

// Finding is one classified (subject, day).
type Finding struct {
	DailyLoad
	Status Status
	// Amount is the overload for overloaded days and the free capacity for
	// underutilized days.
	Amount     decimal.Decimal
	Suggestion string
}

type ClassificationSummary struct {
	TotalOverloadedDays    int
	TotalUnderutilizedDays int
}

type Classification struct {
	Model         CapacityModel
	Overloaded    []Finding
	Underutilized []Finding
	Summary       ClassificationSummary
}

// ClassifyLoad applies the threshold policy to a single total.
func ClassifyLoad(total decimal.Decimal, model CapacityModel) (Status, decimal.Decimal) {
	full := model.FullCapacity()
	switch {
	case total.GreaterThan(full):
		return StatusOverloaded, total.Sub(full)
	case total.IsPositive() && total.LessThan(model.UnderutilizedBelow()):
		return StatusUnderutilized, full.Sub(total)
	default:
		return StatusNominal, decimal.Zero
	}
}

// Classify walks loads in aggregation order and reports overloaded and
// underutilized days.
func Classify(loads *DailyLoads, model CapacityModel) Classification {
	result := Classification{Model: model}
	for l := range loads.All() {
		status, amount := ClassifyLoad(l.Total, model)
		switch status {
		case StatusOverloaded:
			result.Overloaded = append(result.Overloaded, Finding{
				DailyLoad:  *l,
				Status:     status,
				Amount:     amount,
				Suggestion: suggestion(status, amount, model),
			})
		case StatusUnderutilized:
			result.Underutilized = append(result.Underutilized, Finding{
				DailyLoad:  *l,
				Status:     status,
				Amount:     amount,
				Suggestion: suggestion(status, amount, model),
			})
		}
	}
	result.Summary = ClassificationSummary{
		TotalOverloadedDays:    len(result.Overloaded),
		TotalUnderutilizedDays: len(result.Underutilized),
	}
	return result
}

func suggestion(status Status, amount decimal.Decimal, model CapacityModel) string {
	if model == ModelFTE {
		if status == StatusOverloaded {
			return fmt.Sprintf("Reduce FTE by %s", amount.StringFixed(2))
		}
		return fmt.Sprintf("Available FTE: %s", amount.StringFixed(2))
	}
	if status == StatusOverloaded {
		return fmt.Sprintf("Reduce allocation by %s%%", amount.StringFixed(1))
	}
	return fmt.Sprintf("Available capacity: %s%%", amount.StringFixed(1))
}
