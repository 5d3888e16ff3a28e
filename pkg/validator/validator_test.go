package validator

import (
	"context"
	"strings"
	"testing"
)

type expenseForm struct {
	Title    string `json:"title" validate:"notblank,max=120"`
	Amount   int64  `json:"amount" validate:"positive"`
	Category string `json:"category" validate:"notblank"`
}

type eventForm struct {
	Name string `json:"name" validate:"required"`
	Time string `json:"time" validate:"hhmm"`
	Role string `json:"role" validate:"oneof=user vendor"`
}

func TestValidateReportsEveryViolation(t *testing.T) {
	msgs := Validate(context.Background(), expenseForm{Title: "   ", Amount: 0})
	if len(msgs) != 3 {
		t.Fatalf("expected 3 violations, got %d: %v", len(msgs), msgs)
	}
	joined := strings.Join(msgs, "; ")
	for _, want := range []string{"title is required", "amount must be greater than 0", "category is required"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %q", want, joined)
		}
	}
}

func TestValidateAcceptsValidInput(t *testing.T) {
	if msgs := Validate(context.Background(), expenseForm{Title: "Cake", Amount: 250, Category: "Food"}); msgs != nil {
		t.Fatalf("expected no violations, got %v", msgs)
	}
}

func TestClockTimeAndOneOf(t *testing.T) {
	cases := []struct {
		name string
		form eventForm
		want int
	}{
		{"valid", eventForm{Name: "Party", Time: "18:30", Role: "vendor"}, 0},
		{"bad hour", eventForm{Name: "Party", Time: "24:00", Role: "user"}, 1},
		{"bad format", eventForm{Name: "Party", Time: "6pm", Role: "user"}, 1},
		{"bad role", eventForm{Name: "Party", Time: "06:00", Role: "admin"}, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Validate(context.Background(), tc.form); len(got) != tc.want {
				t.Fatalf("expected %d violations, got %v", tc.want, got)
			}
		})
	}
}
