package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"eventhub/internal/apperr"
	"eventhub/internal/guard"
	"eventhub/internal/model"
	"eventhub/internal/repo"
)

type ExpenseInput struct {
	Title    string `json:"title" validate:"notblank,max=150"`
	Amount   int64  `json:"amount" validate:"positive,max=100000000000"`
	Category string `json:"category" validate:"notblank,max=60"`
}

// BudgetSummary is always recomputed from the full expense list.
type BudgetSummary struct {
	Budget    model.Budget `json:"budget"`
	Spent     int64        `json:"spent"`
	Remaining int64        `json:"remaining"`
	Alert     bool         `json:"alert"`
}

func summarize(b model.Budget) BudgetSummary {
	return BudgetSummary{Budget: b, Spent: b.Spent(), Remaining: b.Remaining(), Alert: b.Overspent()}
}

// budgetFor returns the event's budget, creating an empty one for events
// stored before budgets existed.
func (s *Service) budgetFor(ctx context.Context, r *repo.Set, eventID string) (model.Budget, error) {
	b, err := r.Budgets.FindByEvent(ctx, eventID)
	if !isNotFound(err) {
		return b, err
	}
	b = model.Budget{EventID: eventID, UpdatedAt: s.now().UTC()}
	if err := r.Budgets.Create(ctx, &b); err != nil {
		return model.Budget{}, err
	}
	s.log.Warn().Str("event_id", eventID).Str("budget_id", b.ID).Msg("created missing budget for event")
	return b, nil
}

func (s *Service) GetBudget(ctx context.Context, p guard.Principal, eventID string) (sum BudgetSummary, err error) {
	defer s.track("get_budget", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return sum, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		if _, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p); err != nil {
			return err
		}
		b, err := s.budgetFor(ctx, r, eventID)
		if err != nil {
			return err
		}
		sum = summarize(b)
		return nil
	})
	return sum, err
}

func (s *Service) SetTotalBudget(ctx context.Context, p guard.Principal, eventID string, total int64) (sum BudgetSummary, err error) {
	defer s.track("set_total_budget", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return sum, err
	}

	if total < 0 {
		return sum, apperr.Validation("totalBudget must not be negative")
	}
	if total > model.MaxAmount {
		return sum, apperr.Validation(fmt.Sprintf("totalBudget must not exceed %d", model.MaxAmount))
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		if _, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p); err != nil {
			return err
		}
		b, err := s.budgetFor(ctx, r, eventID)
		if err != nil {
			return err
		}
		b.TotalBudget = total
		b.UpdatedAt = s.now().UTC()
		if err := r.Budgets.Update(ctx, b); err != nil {
			return err
		}
		sum = summarize(b)
		return nil
	})
	return sum, err
}

// AddExpense appends to the event budget. Overspending is allowed and
// reported through the summary's Alert flag.
func (s *Service) AddExpense(ctx context.Context, p guard.Principal, eventID string, in ExpenseInput) (sum BudgetSummary, err error) {
	defer s.track("add_expense", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return sum, err
	}

	in.Title = strings.TrimSpace(in.Title)
	in.Category = strings.TrimSpace(in.Category)
	if err := validate(ctx, in); err != nil {
		return sum, err
	}
	err = s.inTx(ctx, func(r *repo.Set) error {
		if _, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p); err != nil {
			return err
		}
		b, err := s.appendExpense(ctx, r, eventID, model.Expense{Title: in.Title, Amount: in.Amount, Category: in.Category})
		if err != nil {
			return err
		}
		sum = summarize(b)
		return nil
	})
	if err == nil && sum.Alert {
		s.log.Info().Str("event_id", eventID).Int64("remaining", sum.Remaining).Msg("event budget overspent")
	}
	return sum, err
}

func (s *Service) appendExpense(ctx context.Context, r *repo.Set, eventID string, e model.Expense) (model.Budget, error) {
	b, err := s.budgetFor(ctx, r, eventID)
	if err != nil {
		return b, err
	}
	if e.Amount > math.MaxInt64-b.Spent() {
		return b, apperr.Validation("expenses would exceed the largest representable total")
	}
	now := s.now().UTC()
	e.CreatedAt = now
	b.Expenses = append(b.Expenses, e)
	b.UpdatedAt = now
	return b, r.Budgets.Update(ctx, b)
}

func (s *Service) RemoveExpense(ctx context.Context, p guard.Principal, eventID string, index int) (sum BudgetSummary, err error) {
	defer s.track("remove_expense", time.Now(), &err)

	if err = s.authorize(ctx, &p); err != nil {
		return sum, err
	}

	err = s.inTx(ctx, func(r *repo.Set) error {
		if _, err := guard.LoadOwned(ctx, r.Events.FindByID, eventID, p); err != nil {
			return err
		}
		b, err := s.budgetFor(ctx, r, eventID)
		if err != nil {
			return err
		}
		if index < 0 || index >= len(b.Expenses) {
			return apperr.NotFound("expense", fmt.Sprint(index))
		}
		b.Expenses = append(b.Expenses[:index], b.Expenses[index+1:]...)
		b.UpdatedAt = s.now().UTC()
		if err := r.Budgets.Update(ctx, b); err != nil {
			return err
		}
		sum = summarize(b)
		return nil
	})
	return sum, err
}
