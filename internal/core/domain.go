package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	MaxTitleLength    = 200
	MaxCategoryLength = 100
	MaxNotesLength    = 1000
	MinPasswordLength = 6
	// MaxPasswordBytes is the longest input bcrypt accepts.
	MaxPasswordBytes = 72
)

var amountLimitMessage = "amount must be at most " + Money{Cents: MaxAmountCents}.String()

type (
	// Expense is a single spending record. Owner is fixed at creation.
	Expense struct {
		ID        string    `json:"id"`
		Title     string    `json:"title"`
		Amount    Money     `json:"amount"`
		Date      time.Time `json:"date"`
		Category  string    `json:"category"`
		Notes     string    `json:"notes,omitempty"`
		Owner     string    `json:"user"`
		CreatedAt time.Time `json:"createdAt"`
		UpdatedAt time.Time `json:"updatedAt"`
	}

	// NewExpense carries the fields accepted when creating an expense. An
	// amount or date that fails to parse is remembered for Validate rather
	// than failing the decode.
	NewExpense struct {
		Title    string `json:"title"`
		Amount   *Money `json:"amount"`
		Date     *Date  `json:"date"`
		Category string `json:"category"`
		Notes    string `json:"notes"`

		amountErr error
		dateErr   error
	}

	// ExpensePatch is a partial update. Only present fields are applied.
	ExpensePatch struct {
		Title    Optional[string] `json:"title"`
		Amount   Optional[Money]  `json:"amount"`
		Date     Optional[Date]   `json:"date"`
		Category Optional[string] `json:"category"`
		Notes    Optional[string] `json:"notes"`
	}

	User struct {
		ID           string    `json:"id"`
		Name         string    `json:"name"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"createdAt"`
	}
)

// NewID returns a fresh object id in its 24 character hex form.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// IsValidID reports whether s is a well-formed object id.
func IsValidID(s string) bool {
	return primitive.IsValidObjectID(s)
}

// Normalize trims the free-text fields.
func (n NewExpense) Normalize() NewExpense {
	n.Title = strings.TrimSpace(n.Title)
	n.Category = strings.TrimSpace(n.Category)
	n.Notes = strings.TrimSpace(n.Notes)
	return n
}

// UnmarshalJSON decodes the text fields strictly and keeps amount and date
// parse failures for Validate. Unknown fields are rejected.
func (n *NewExpense) UnmarshalJSON(b []byte) error {
	var raw struct {
		Title    string          `json:"title"`
		Amount   json.RawMessage `json:"amount"`
		Date     json.RawMessage `json:"date"`
		Category string          `json:"category"`
		Notes    string          `json:"notes"`
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return err
	}

	*n = NewExpense{Title: raw.Title, Category: raw.Category, Notes: raw.Notes}
	if isSet(raw.Amount) {
		var m Money
		if err := m.UnmarshalJSON(raw.Amount); err != nil {
			n.amountErr = err
		} else {
			n.Amount = &m
		}
	}
	if isSet(raw.Date) {
		var d Date
		if err := d.UnmarshalJSON(raw.Date); err != nil {
			n.dateErr = err
		} else {
			n.Date = &d
		}
	}
	return nil
}

func isSet(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && !bytes.Equal(raw, []byte("null"))
}

func (n NewExpense) Validate() error {
	return Rules{
		{Field: "title", Message: "title is required", Valid: func() bool { return n.Title != "" }},
		{Field: "title", Message: "title must be at most 200 characters", Valid: func() bool {
			return utf8.RuneCountInString(n.Title) <= MaxTitleLength
		}},
		{Field: "amount", Message: "amount must be a positive number", Valid: func() bool {
			return n.amountErr == nil && n.Amount != nil && n.Amount.Cents > 0
		}},
		{Field: "amount", Message: amountLimitMessage, Valid: func() bool {
			return n.Amount == nil || n.Amount.WithinLimit()
		}},
		{Field: "date", Message: "date must be a valid ISO 8601 date", Valid: func() bool {
			return n.dateErr == nil
		}},
		{Field: "category", Message: "category is required", Valid: func() bool { return n.Category != "" }},
		{Field: "category", Message: "category must be at most 100 characters", Valid: func() bool {
			return utf8.RuneCountInString(n.Category) <= MaxCategoryLength
		}},
		{Field: "notes", Message: "notes must be at most 1000 characters", Valid: func() bool {
			return utf8.RuneCountInString(n.Notes) <= MaxNotesLength
		}},
	}.Validate()
}

// Build turns validated input into an Expense owned by owner. A missing
// date defaults to now.
func (n NewExpense) Build(owner string, now time.Time) Expense {
	e := Expense{
		ID:        NewID(),
		Title:     n.Title,
		Date:      now.UTC(),
		Category:  n.Category,
		Notes:     n.Notes,
		Owner:     owner,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	if n.Amount != nil {
		e.Amount = *n.Amount
	}
	if n.Date != nil && !n.Date.IsZero() {
		e.Date = n.Date.UTC()
	}
	return e
}

// Normalize trims the present text fields of the patch.
func (p ExpensePatch) Normalize() ExpensePatch {
	p.Title.Value = strings.TrimSpace(p.Title.Value)
	p.Category.Value = strings.TrimSpace(p.Category.Value)
	p.Notes.Value = strings.TrimSpace(p.Notes.Value)
	return p
}

// Validate checks present fields with the same constraints as creation.
// A present null is rejected for every field except notes, where it clears
// the value.
func (p ExpensePatch) Validate() error {
	var rules Rules
	if p.Title.Present {
		rules = append(rules,
			Rule{Field: "title", Message: "title must be a string", Valid: func() bool {
				return !p.Title.Invalid()
			}},
			Rule{Field: "title", Message: "title cannot be empty", Valid: func() bool {
				return p.Title.Invalid() || (!p.Title.Null && p.Title.Value != "")
			}},
			Rule{Field: "title", Message: "title must be at most 200 characters", Valid: func() bool {
				return utf8.RuneCountInString(p.Title.Value) <= MaxTitleLength
			}},
		)
	}
	if p.Amount.Present {
		rules = append(rules,
			Rule{Field: "amount", Message: "amount must be a positive number", Valid: func() bool {
				return !p.Amount.Null && !p.Amount.Invalid() && p.Amount.Value.Cents > 0
			}},
			Rule{Field: "amount", Message: amountLimitMessage, Valid: func() bool {
				return p.Amount.Value.WithinLimit()
			}},
		)
	}
	if p.Date.Present {
		rules = append(rules, Rule{Field: "date", Message: "date must be a valid ISO 8601 date", Valid: func() bool {
			return !p.Date.Null && !p.Date.Invalid() && !p.Date.Value.IsZero()
		}})
	}
	if p.Category.Present {
		rules = append(rules,
			Rule{Field: "category", Message: "category must be a string", Valid: func() bool {
				return !p.Category.Invalid()
			}},
			Rule{Field: "category", Message: "category cannot be empty", Valid: func() bool {
				return p.Category.Invalid() || (!p.Category.Null && p.Category.Value != "")
			}},
			Rule{Field: "category", Message: "category must be at most 100 characters", Valid: func() bool {
				return utf8.RuneCountInString(p.Category.Value) <= MaxCategoryLength
			}},
		)
	}
	if p.Notes.Present {
		rules = append(rules,
			Rule{Field: "notes", Message: "notes must be a string", Valid: func() bool {
				return !p.Notes.Invalid()
			}},
			Rule{Field: "notes", Message: "notes must be at most 1000 characters", Valid: func() bool {
				return utf8.RuneCountInString(p.Notes.Value) <= MaxNotesLength
			}},
		)
	}
	return rules.Validate()
}

// IsEmpty reports whether the patch changes nothing.
func (p ExpensePatch) IsEmpty() bool {
	return !p.Title.Present && !p.Amount.Present && !p.Date.Present &&
		!p.Category.Present && !p.Notes.Present
}

// Apply returns e with the present patch fields written over it.
func (e Expense) Apply(p ExpensePatch, now time.Time) Expense {
	if p.Title.Present {
		e.Title = p.Title.Value
	}
	if p.Amount.Present {
		e.Amount = p.Amount.Value
	}
	if p.Date.Present {
		e.Date = p.Date.Value.UTC()
	}
	if p.Category.Present {
		e.Category = p.Category.Value
	}
	if p.Notes.Present {
		e.Notes = p.Notes.Value
	}
	e.UpdatedAt = now.UTC()
	return e
}

// NormalizeEmail lower-cases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
