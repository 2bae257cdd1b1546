package reconcile

import (
	"github.com/shopspring/decimal"

	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
)

// DeriveStatus computes the status implied by a gateway-reported total
// against the configured fee. Boundaries are exact: totalPaid >= fee is
// completed, zero is pending.
func DeriveStatus(totalPaid, fee decimal.Decimal) enums.PaymentStatus {
	switch {
	case totalPaid.GreaterThanOrEqual(fee):
		return enums.PaymentStatusCompleted
	case totalPaid.IsPositive():
		return enums.PaymentStatusPartiallyPaid
	default:
		return enums.PaymentStatusPending
	}
}
