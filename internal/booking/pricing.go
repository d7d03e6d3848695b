package booking

import (
	"github.com/nekogravitycat/rental-booking-backend/internal/pkg/money"
)

// DefaultServiceFeeRate is the platform commission on the base stay price.
var DefaultServiceFeeRate = money.MustParseRate("0.10")

// maxQuoteAmount is the largest amount a numeric(12,2) column holds.
const maxQuoteAmount = money.Amount(999_999_999_999)

// Calculator computes price breakdowns. It is a pure function of its inputs.
type Calculator struct {
	ServiceFeeRate money.Rate
}

func NewCalculator(rate money.Rate) Calculator {
	return Calculator{ServiceFeeRate: rate}
}

// Compute prices a stay:
//
//	base    = nightlyRate * nights * guestCount
//	service = round2(base * ServiceFeeRate), half-up
//	total   = base + cleaningFee + service
//
// The deposit is carried in the breakdown but is not part of the total.
// Any figure beyond what the bookings table can store is rejected.
func (c Calculator) Compute(nightlyRate money.Amount, nights, guestCount int, cleaningFee, deposit money.Amount) (PriceBreakdown, error) {
	if nightlyRate.IsNegative() || cleaningFee.IsNegative() || deposit.IsNegative() || c.ServiceFeeRate < 0 {
		return PriceBreakdown{}, ErrInvalidPricingInput
	}
	if nights < 1 {
		return PriceBreakdown{}, ErrInvalidDateRange
	}
	if guestCount < 1 {
		return PriceBreakdown{}, ErrInvalidGuestCount
	}

	perGuest, ok := nightlyRate.MulChecked(int64(nights))
	if !ok {
		return PriceBreakdown{}, ErrPriceOutOfRange
	}
	base, ok := perGuest.MulChecked(int64(guestCount))
	if !ok || base > maxQuoteAmount || cleaningFee > maxQuoteAmount || deposit > maxQuoteAmount {
		return PriceBreakdown{}, ErrPriceOutOfRange
	}
	service, ok := base.ApplyRateChecked(c.ServiceFeeRate)
	if !ok || service > maxQuoteAmount {
		return PriceBreakdown{}, ErrPriceOutOfRange
	}
	total := money.Sum(base, cleaningFee, service)
	if total > maxQuoteAmount {
		return PriceBreakdown{}, ErrPriceOutOfRange
	}

	return PriceBreakdown{
		NightlyRate:     nightlyRate,
		Nights:          nights,
		GuestCount:      guestCount,
		BasePrice:       base,
		CleaningFee:     cleaningFee,
		SecurityDeposit: deposit,
		ServiceFee:      service,
		Total:           total,
	}, nil
}
