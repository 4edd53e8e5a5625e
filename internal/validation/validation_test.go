package validation

import (
	"errors"
	"testing"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

func TestStruct(t *testing.T) {
	tests := []struct {
		name      string
		input     any
		wantErr   bool
		wantField string
	}{
		{
			name:    "valid transaction input",
			input:   domain.TransactionInput{Category: "food", Type: domain.TransactionExpense},
			wantErr: false,
		},
		{
			name:      "missing category",
			input:     domain.TransactionInput{Type: domain.TransactionIncome},
			wantErr:   true,
			wantField: "category",
		},
		{
			name:      "unknown type",
			input:     domain.TransactionInput{Category: "food", Type: "transfer"},
			wantErr:   true,
			wantField: "type",
		},
		{
			name:      "bad priority",
			input:     domain.GoalInput{Name: "Car", Category: "car", Priority: "urgent"},
			wantErr:   true,
			wantField: "priority",
		},
		{
			name:      "bad conversation kind",
			input:     domain.NewConversation{Kind: "gossip"},
			wantErr:   true,
			wantField: "kind",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Struct(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Struct() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				return
			}

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *domain.ValidationError, got %T", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("Field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}
