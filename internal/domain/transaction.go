package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money flow for a ledger entry.
type TransactionType string

const (
	TransactionIncome  TransactionType = "income"
	TransactionExpense TransactionType = "expense"
)

// Valid reports whether t is one of the two allowed transaction types.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionExpense
}

// Transaction is one confirmed ledger entry.
// Transactions are immutable once appended to the ledger.
type Transaction struct {
	ID            string          `json:"id"`
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Establishment string          `json:"establishment,omitempty"`
	Category      string          `json:"category"`
	Type          TransactionType `json:"type"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Recurring     bool            `json:"recurring,omitempty"`

	// Confidence is set when the transaction came from receipt analysis.
	Confidence *float64 `json:"confidence,omitempty"`
}

// TransactionInput carries the caller-supplied fields of a new transaction.
type TransactionInput struct {
	Amount        decimal.Decimal `json:"amount"`
	Date          time.Time       `json:"date"`
	Description   string          `json:"description"`
	Establishment string          `json:"establishment,omitempty"`
	Category      string          `json:"category" validate:"required"`
	Type          TransactionType `json:"type" validate:"required,oneof=income expense"`
	PaymentMethod string          `json:"payment_method,omitempty"`
	Recurring     bool            `json:"recurring,omitempty"`
	Confidence    *float64        `json:"confidence,omitempty"`
}
