package paycashless

import (
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the gateway-reported lifecycle state of an invoice.
type InvoiceStatus string

const (
	InvoiceStatusOpen          InvoiceStatus = "open"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusVoid          InvoiceStatus = "void"
)

// Customer identifies the payer on a gateway invoice.
type Customer struct {
	Name        string `json:"name,omitempty"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// Invoice is the normalized gateway invoice consumed by reconciliation.
type Invoice struct {
	ID         string          `json:"id"`
	Reference  string          `json:"reference"`
	Number     string          `json:"number"`
	PaymentURL string          `json:"hostedInvoiceUrl"`
	AmountDue  decimal.Decimal `json:"amountDue"`
	TotalPaid  decimal.Decimal `json:"totalPaid"`
	Currency   string          `json:"currency"`
	Status     InvoiceStatus   `json:"status"`
	Customer   Customer        `json:"customer"`
	DueDate    *time.Time      `json:"dueDate,omitempty"`
}

// CreateInvoiceParams describes the payload sent to the invoice creation API.
type CreateInvoiceParams struct {
	Customer          Customer        `json:"customer"`
	Amount            decimal.Decimal `json:"amount"`
	Currency          string          `json:"currency"`
	Reference         string          `json:"reference"`
	CallbackURL       string          `json:"callbackUrl,omitempty"`
	ReturnURL         string          `json:"returnUrl,omitempty"`
	DueDate           *time.Time      `json:"dueDate,omitempty"`
	AllowInstallments bool            `json:"allowInstallments"`
}

// ListInvoicesParams bounds the invoice listing, newest first.
type ListInvoicesParams struct {
	Limit int
}
