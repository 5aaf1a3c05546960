// Package memory is an in-process data backend for development and tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"expenses/internal/core"
)

type Store struct {
	mu       sync.Mutex
	expenses []core.Expense
	users    map[string]core.User // by normalized email
	events   []core.AuditEntry
}

func New() *Store {
	return &Store{users: map[string]core.User{}}
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) CreateExpense(_ context.Context, e core.Expense) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = append(s.expenses, e)
	return e, nil
}

func (s *Store) GetExpense(_ context.Context, owner, id string) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(owner, id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	return s.expenses[i], nil
}

// ListExpenses returns the owner's matching expenses ordered by date, then
// insertion.
func (s *Store) ListExpenses(_ context.Context, owner string, f core.Filter) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Expense, 0)
	for _, e := range s.expenses {
		if e.Owner == owner && f.Matches(e) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *Store) UpdateExpense(_ context.Context, owner, id string, p core.ExpensePatch, now time.Time) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(owner, id)
	if i < 0 {
		return core.Expense{}, core.ErrNotFound
	}
	s.expenses[i] = s.expenses[i].Apply(p, now)
	return s.expenses[i], nil
}

func (s *Store) DeleteExpense(_ context.Context, owner, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(owner, id)
	if i < 0 {
		return core.ErrNotFound
	}
	s.expenses = append(s.expenses[:i], s.expenses[i+1:]...)
	return nil
}

func (s *Store) SumByCategory(_ context.Context, owner string, w core.Window) ([]core.CategoryTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byCategory := map[string]*core.CategoryTotal{}
	var order []string
	for _, e := range s.expenses {
		if e.Owner != owner || !w.Contains(e.Date) {
			continue
		}
		ct, ok := byCategory[e.Category]
		if !ok {
			ct = &core.CategoryTotal{Category: e.Category}
			byCategory[e.Category] = ct
			order = append(order, e.Category)
		}
		total, err := ct.TotalAmount.Add(e.Amount)
		if err != nil {
			return nil, err
		}
		ct.TotalAmount = total
		ct.TotalCount++
	}
	out := make([]core.CategoryTotal, 0, len(order))
	for _, c := range order {
		out = append(out, *byCategory[c])
	}
	return out, nil
}

func (s *Store) CreateUser(_ context.Context, u core.User) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := core.NormalizeEmail(u.Email)
	if _, ok := s.users[key]; ok {
		return core.User{}, core.ErrUserExists
	}
	u.Email = key
	s.users[key] = u
	return u, nil
}

func (s *Store) GetUserByEmail(_ context.Context, email string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[core.NormalizeEmail(email)]
	if !ok {
		return core.User{}, core.ErrNotFound
	}
	return u, nil
}

func (s *Store) RecordEvent(_ context.Context, e core.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = int64(len(s.events) + 1)
	s.events = append(s.events, e)
	return nil
}

func (s *Store) ListEvents(_ context.Context, expenseID string) ([]core.AuditEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.AuditEntry, 0)
	for _, e := range s.events {
		if e.ExpenseID == expenseID {
			out = append(out, e)
		}
	}
	return out, nil
}

// indexOf must be called with mu held.
func (s *Store) indexOf(owner, id string) int {
	for i, e := range s.expenses {
		if e.ID == id && e.Owner == owner {
			return i
		}
	}
	return -1
}
