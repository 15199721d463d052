package pricing

import (
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/makercost/makercost/internal/shared"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate rejects malformed product input before it reaches the engine.
// Negative costs, out-of-range percentages and zero units count are caught
// here; the engine itself assumes well-formed input.
func Validate(in ProductInput) error {
	if err := validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrValidation, err)
	}
	for _, m := range in.Materials {
		if !m.Unit.Valid() {
			return fmt.Errorf("%w: material %q has unknown unit %q", shared.ErrValidation, m.Name, m.Unit)
		}
	}
	for _, m := range in.Machines {
		// Per-hour amortization divides by HoursPerYear.
		if m.HoursPerYear <= 0 && (m.DepreciationPercent > 0 || m.MaintenanceCostPerYear > 0) {
			return fmt.Errorf("%w: machine %q needs hours_per_year > 0 for amortization", shared.ErrValidation, m.Name)
		}
	}
	return nil
}
