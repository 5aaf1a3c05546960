package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"expenses/internal/core"
	applog "expenses/internal/log"
)

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Run migrations
	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

const expenseColumns = `id, owner, title, amount_cents, date, category, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (core.Expense, error) {
	var (
		e                          core.Expense
		date, createdAt, updatedAt int64
	)
	err := row.Scan(&e.ID, &e.Owner, &e.Title, &e.Amount.Cents, &date, &e.Category, &e.Notes, &createdAt, &updatedAt)
	if err != nil {
		return core.Expense{}, err
	}
	e.Date = fromMillis(date)
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return e, nil
}

func (r *SQLiteRepository) CreateExpense(ctx context.Context, e core.Expense) (core.Expense, error) {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (`+expenseColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Owner, e.Title, e.Amount.Cents, e.Date.UnixMilli(), e.Category, e.Notes,
		e.CreatedAt.UnixMilli(), e.UpdatedAt.UnixMilli())
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	slog.DebugContext(ctx, "Expense saved to SQLite",
		applog.FieldExpenseID, e.ID,
		applog.FieldAmountCents, e.Amount.Cents,
		applog.FieldCategory, e.Category)

	return normalizeTimes(e), nil
}

func (r *SQLiteRepository) GetExpense(ctx context.Context, owner, id string) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND owner = ?`, id, owner)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns the owner's expenses matching f, ordered by date and
// then insertion.
func (r *SQLiteRepository) ListExpenses(ctx context.Context, owner string, f core.Filter) ([]core.Expense, error) {
	where, args := windowClause(owner, f.Window)
	if f.Category != "" {
		where += ` AND category = ?`
		args = append(args, f.Category)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE `+where+` ORDER BY date, rowid`, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := make([]core.Expense, 0)
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

// UpdateExpense reads, patches and writes the row inside one transaction.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, owner, id string, p core.ExpensePatch, now time.Time) (core.Expense, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return core.Expense{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	current, err := scanExpense(tx.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND owner = ?`, id, owner))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}

	updated := current.Apply(p, now)
	_, err = tx.ExecContext(ctx,
		`UPDATE expenses
		    SET title = ?, amount_cents = ?, date = ?, category = ?, notes = ?, updated_at = ?
		  WHERE id = ? AND owner = ?`,
		updated.Title, updated.Amount.Cents, updated.Date.UnixMilli(), updated.Category, updated.Notes,
		updated.UpdatedAt.UnixMilli(), id, owner)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return core.Expense{}, fmt.Errorf("commit transaction: %w", err)
	}
	return normalizeTimes(updated), nil
}

func (r *SQLiteRepository) DeleteExpense(ctx context.Context, owner, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND owner = ?`, id, owner)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// SumByCategory lets SQLite do the grouping.
func (r *SQLiteRepository) SumByCategory(ctx context.Context, owner string, w core.Window) ([]core.CategoryTotal, error) {
	where, args := windowClause(owner, w)
	rows, err := r.db.QueryContext(ctx,
		`SELECT category, SUM(amount_cents), COUNT(*) FROM expenses WHERE `+where+
			` GROUP BY category ORDER BY category`, args...)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	out := make([]core.CategoryTotal, 0)
	for rows.Next() {
		var ct core.CategoryTotal
		if err := rows.Scan(&ct.Category, &ct.TotalAmount.Cents, &ct.TotalCount); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, ct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate category totals: %w", err)
	}
	return out, nil
}

func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	u.Email = core.NormalizeEmail(u.Email)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, password_hash, created_at) VALUES (?, ?, ?, ?, ?)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.CreatedAt.UnixMilli())
	if isUniqueViolation(err) {
		return core.User{}, core.ErrUserExists
	}
	if err != nil {
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.CreatedAt = fromMillis(u.CreatedAt.UnixMilli())
	return u, nil
}

func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (core.User, error) {
	var (
		u         core.User
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?`,
		core.NormalizeEmail(email)).Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.User{}, core.ErrNotFound
	}
	if err != nil {
		return core.User{}, fmt.Errorf("get user: %w", err)
	}
	u.CreatedAt = fromMillis(createdAt)
	return u, nil
}

// RecordEvent implements store.AuditRecorder
func (r *SQLiteRepository) RecordEvent(ctx context.Context, e core.AuditEntry) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO expense_events (event_type, expense_id, owner, occurred_at, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		string(e.EventType), e.ExpenseID, e.Owner, e.OccurredAt.UnixMilli(), e.RecordedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("insert expense event: %w", err)
	}
	return nil
}

// ListEvents implements store.AuditRecorder
func (r *SQLiteRepository) ListEvents(ctx context.Context, expenseID string) ([]core.AuditEntry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, event_type, expense_id, owner, occurred_at, recorded_at
		   FROM expense_events WHERE expense_id = ? ORDER BY id`, expenseID)
	if err != nil {
		return nil, fmt.Errorf("list expense events: %w", err)
	}
	defer rows.Close()

	out := make([]core.AuditEntry, 0)
	for rows.Next() {
		var (
			e                      core.AuditEntry
			eventType              string
			occurredAt, recordedAt int64
		)
		if err := rows.Scan(&e.ID, &eventType, &e.ExpenseID, &e.Owner, &occurredAt, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan expense event: %w", err)
		}
		e.EventType = core.EventType(eventType)
		e.OccurredAt = fromMillis(occurredAt)
		e.RecordedAt = fromMillis(recordedAt)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expense events: %w", err)
	}
	return out, nil
}

func windowClause(owner string, w core.Window) (string, []any) {
	clauses := []string{"owner = ?"}
	args := []any{owner}
	if !w.From.IsZero() {
		clauses = append(clauses, "date >= ?")
		args = append(args, core.CeilMilli(w.From).UnixMilli())
	}
	if !w.To.IsZero() {
		clauses = append(clauses, "date < ?")
		args = append(args, core.CeilMilli(w.To).UnixMilli())
	}
	return strings.Join(clauses, " AND "), args
}

func fromMillis(n int64) time.Time {
	return time.UnixMilli(n).UTC()
}

// normalizeTimes returns e with its timestamps as they read back from disk.
func normalizeTimes(e core.Expense) core.Expense {
	e.Date = fromMillis(e.Date.UnixMilli())
	e.CreatedAt = fromMillis(e.CreatedAt.UnixMilli())
	e.UpdatedAt = fromMillis(e.UpdatedAt.UnixMilli())
	return e
}

func isUniqueViolation(err error) bool {
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
