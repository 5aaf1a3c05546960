package store

import (
	"context"
	"time"

	"expenses/internal/core"
)

// Ports for outbound persistence adapters. Every expense method is scoped to
// owner; a row belonging to someone else is reported as core.ErrNotFound.
type (
	ExpenseRepository interface {
		CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error)
		GetExpense(ctx context.Context, owner, id string) (core.Expense, error)
		ListExpenses(ctx context.Context, owner string, f core.Filter) ([]core.Expense, error)
		// UpdateExpense applies the patch atomically and returns the stored record.
		UpdateExpense(ctx context.Context, owner, id string, p core.ExpensePatch, now time.Time) (core.Expense, error)
		DeleteExpense(ctx context.Context, owner, id string) error
		// SumByCategory groups the owner's expenses inside w by category.
		SumByCategory(ctx context.Context, owner string, w core.Window) ([]core.CategoryTotal, error)
	}

	UserRepository interface {
		// CreateUser fails with core.ErrUserExists when the email is taken.
		CreateUser(ctx context.Context, u core.User) (core.User, error)
		GetUserByEmail(ctx context.Context, email string) (core.User, error)
	}

	AuditRecorder interface {
		RecordEvent(ctx context.Context, e core.AuditEntry) error
		ListEvents(ctx context.Context, expenseID string) ([]core.AuditEntry, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Repository is what a data backend provides to the API server.
	Repository interface {
		ExpenseRepository
		UserRepository
		Pinger
	}
)
