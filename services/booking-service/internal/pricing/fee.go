package pricing

import (
	"errors"
	"fmt"

	"github.com/md-rashed-zaman/lexbook/services/booking-service/internal/model"
	"github.com/shopspring/decimal"
)

var ErrInvalidRate = errors.New("hourly rate must not be negative")

// Fee is derived from the provider's hourly rate and never stored on its own.
type Fee struct {
	LawyerFee  int64 `json:"lawyer_fee"`
	ServiceFee int64 `json:"service_fee"`
	Total      int64 `json:"total"`
}

var (
	multipliers = map[int]decimal.Decimal{
		30:  decimal.New(5, -1),
		60:  decimal.New(1, 0),
		90:  decimal.New(15, -1),
		120: decimal.New(2, 0),
	}
	serviceFeeRate = decimal.New(10, -2)
)

// ComputeFee prices one session. The lawyer fee and the service fee are
// rounded separately (half away from zero) before being added, which is what
// clients have always been charged.
func ComputeFee(hourlyRate int64, durationMinutes int) (Fee, error) {
	if err := model.ValidateDuration(durationMinutes); err != nil {
		return Fee{}, err
	}
	if hourlyRate < 0 {
		return Fee{}, fmt.Errorf("%w: %d", ErrInvalidRate, hourlyRate)
	}
	lawyer := decimal.NewFromInt(hourlyRate).Mul(multipliers[durationMinutes]).Round(0)
	service := lawyer.Mul(serviceFeeRate).Round(0)
	return Fee{
		LawyerFee:  lawyer.IntPart(),
		ServiceFee: service.IntPart(),
		Total:      lawyer.Add(service).IntPart(),
	}, nil
}
