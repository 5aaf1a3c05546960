package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"expenses/internal/core"
	applog "expenses/internal/log"
	"expenses/internal/store"
)

// Publisher announces expense mutations. It is optional.
type Publisher interface {
	PublishExpenseEvent(ctx context.Context, ev core.ExpenseEvent) error
}

// ExpenseService runs owner-scoped expense operations against the store and
// announces mutations through the optional Publisher.
type ExpenseService struct {
	repo   store.ExpenseRepository
	events Publisher
	now    func() time.Time
}

func NewExpenseService(repo store.ExpenseRepository, events Publisher) *ExpenseService {
	return &ExpenseService{repo: repo, events: events, now: time.Now}
}

// List returns the owner's expenses matching f; never nil.
func (s *ExpenseService) List(ctx context.Context, owner string, f core.Filter) ([]core.Expense, error) {
	out, err := s.repo.ListExpenses(ctx, owner, f)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	if out == nil {
		out = []core.Expense{}
	}
	return out, nil
}

func (s *ExpenseService) Get(ctx context.Context, owner, id string) (core.Expense, error) {
	if !core.IsValidID(id) {
		return core.Expense{}, core.ErrNotFound
	}
	e, err := s.repo.GetExpense(ctx, owner, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

func (s *ExpenseService) Create(ctx context.Context, owner string, in core.NewExpense) (core.Expense, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Expense{}, err
	}

	e, err := s.repo.CreateExpense(ctx, in.Build(owner, s.now()))
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		applog.FieldOperation, applog.OpCreate,
		applog.FieldExpenseID, e.ID,
		applog.FieldAmountCents, e.Amount.Cents,
		applog.FieldCategory, e.Category)

	s.publish(ctx, core.EventCreated, e)
	return e, nil
}

// Update applies the present fields of p. Unknown, foreign and malformed ids
// all yield core.ErrNotFound. An empty patch returns the record unchanged.
func (s *ExpenseService) Update(ctx context.Context, owner, id string, p core.ExpensePatch) (core.Expense, error) {
	if !core.IsValidID(id) {
		return core.Expense{}, core.ErrNotFound
	}
	p = p.Normalize()
	if err := p.Validate(); err != nil {
		return core.Expense{}, err
	}
	if p.IsEmpty() {
		return s.Get(ctx, owner, id)
	}

	e, err := s.repo.UpdateExpense(ctx, owner, id, p, s.now())
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense updated",
		applog.FieldOperation, applog.OpUpdate,
		applog.FieldExpenseID, e.ID)
	s.publish(ctx, core.EventUpdated, e)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, owner, id string) error {
	if !core.IsValidID(id) {
		return core.ErrNotFound
	}
	if err := s.repo.DeleteExpense(ctx, owner, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	slog.InfoContext(ctx, "Expense deleted",
		applog.FieldOperation, applog.OpDelete,
		applog.FieldExpenseID, id)
	s.publish(ctx, core.EventDeleted, core.Expense{ID: id, Owner: owner})
	return nil
}

// Report groups the owner's expenses in the inclusive [startDate, endDate]
// range by category. The store groups; the fold computes the totals.
func (s *ExpenseService) Report(ctx context.Context, owner, startDate, endDate string) (core.Report, error) {
	w, err := core.ReportWindow(startDate, endDate)
	if err != nil {
		return core.Report{}, err
	}

	groups, err := s.repo.SumByCategory(ctx, owner, w)
	if err != nil {
		return core.Report{}, fmt.Errorf("sum by category: %w", err)
	}

	r, err := core.NewReport(groups)
	if err != nil {
		return core.Report{}, fmt.Errorf("fold report: %w", err)
	}
	slog.DebugContext(ctx, "Report computed",
		applog.FieldOperation, applog.OpReport,
		applog.FieldCount, r.OverallCount)
	return r, nil
}

// publish never fails the caller: the mutation is already committed.
func (s *ExpenseService) publish(ctx context.Context, t core.EventType, e core.Expense) {
	if s.events == nil {
		return
	}
	ev := core.ExpenseEvent{Type: t, ExpenseID: e.ID, Owner: e.Owner, Timestamp: s.now().UTC()}
	if err := s.events.PublishExpenseEvent(ctx, ev); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			applog.FieldEventType, t,
			applog.FieldExpenseID, e.ID,
			applog.FieldError, err)
	}
}

