package receipts

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"github.com/dvloznov/finance-assistant/internal/categories"
	"github.com/dvloznov/finance-assistant/internal/domain"
	"github.com/shopspring/decimal"
)

// Analyzer extracts a suggested transaction from a receipt image.
type Analyzer interface {
	Analyze(ctx context.Context, image []byte, contentType string) (domain.ReceiptAnalysis, error)
}

var establishments = []string{
	"Central Supermarket",
	"Bella Vista Restaurant",
	"Shell Station",
	"City Pharmacy",
	"Shopping Center",
	"Uber",
	"Deliveroo",
	"Netflix",
}

var reviewSuggestions = []string{
	"Check that the date is correct",
	"Confirm the suggested category",
	"Add notes if needed",
}

// MockAnalyzer derives its result from a hash of the image, so the same
// bytes always produce the same suggestion. The amount lies in [10, 210),
// the category is an expense category and the confidence lies in [0.7, 1.0].
type MockAnalyzer struct {
	registry *categories.Registry
}

func NewMockAnalyzer(registry *categories.Registry) *MockAnalyzer {
	return &MockAnalyzer{registry: registry}
}

// Analyze implements Analyzer.
func (a *MockAnalyzer) Analyze(ctx context.Context, image []byte, contentType string) (domain.ReceiptAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return domain.ReceiptAnalysis{}, err
	}
	if len(image) == 0 {
		return domain.ReceiptAnalysis{}, fmt.Errorf("Analyze: empty image")
	}

	sum := sha256.Sum256(image)
	amountSeed := binary.BigEndian.Uint64(sum[0:8])
	categorySeed := binary.BigEndian.Uint64(sum[8:16])
	placeSeed := binary.BigEndian.Uint64(sum[16:24])
	confidenceSeed := binary.BigEndian.Uint64(sum[24:32])

	cats := a.registry.ForType(domain.TransactionExpense)
	category := categories.OtherCategoryID
	if len(cats) > 0 {
		category = cats[categorySeed%uint64(len(cats))].ID
	}
	establishment := establishments[placeSeed%uint64(len(establishments))]

	amount := decimal.NewFromInt(int64(amountSeed % 20000)).Div(decimal.NewFromInt(100)).Add(decimal.NewFromInt(10))
	confidence := 0.7 + float64(confidenceSeed%3001)/10000

	return domain.ReceiptAnalysis{
		Amount:        amount,
		Description:   "Purchase at " + establishment,
		Establishment: establishment,
		Category:      category,
		Type:          domain.TransactionExpense,
		Confidence:    confidence,
		Suggestions:   append([]string(nil), reviewSuggestions...),
	}, nil
}

var _ Analyzer = (*MockAnalyzer)(nil)
