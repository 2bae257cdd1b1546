package reconcile

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/stayhq-ng/hostelpay-backend/pkg/enums"
)

func TestDeriveStatusBoundaries(t *testing.T) {
	fee := decimal.NewFromInt(219000)

	cases := []struct {
		name      string
		totalPaid int64
		want      enums.PaymentStatus
	}{
		{"zero is pending", 0, enums.PaymentStatusPending},
		{"one below fee is partial", 218999, enums.PaymentStatusPartiallyPaid},
		{"partial mid-range", 100000, enums.PaymentStatusPartiallyPaid},
		{"exact fee is completed", 219000, enums.PaymentStatusCompleted},
		{"overpayment is completed", 250000, enums.PaymentStatusCompleted},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DeriveStatus(decimal.NewFromInt(tc.totalPaid), fee)
			if got != tc.want {
				t.Fatalf("DeriveStatus(%d) = %s, want %s", tc.totalPaid, got, tc.want)
			}
		})
	}
}
