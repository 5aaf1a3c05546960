package core

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldsOf(t *testing.T, err error) []string {
	t.Helper()
	var ve *ValidationError
	require.True(t, errors.As(err, &ve), "expected *ValidationError, got %v", err)
	out := make([]string, len(ve.Fields))
	for i, f := range ve.Fields {
		out[i] = f.Field
	}
	return out
}

func TestNewExpenseValidate(t *testing.T) {
	amount := Money{Cents: 100}
	good := NewExpense{Title: "Lunch", Amount: &amount, Category: "Food"}
	require.NoError(t, good.Validate())

	t.Run("reports every violation", func(t *testing.T) {
		zero := Money{}
		err := NewExpense{Title: "", Amount: &zero, Category: ""}.Validate()
		assert.Equal(t, []string{"title", "amount", "category"}, fieldsOf(t, err))
	})

	t.Run("missing amount", func(t *testing.T) {
		err := NewExpense{Title: "x", Category: "c"}.Validate()
		assert.Equal(t, []string{"amount"}, fieldsOf(t, err))
	})

	t.Run("length limits", func(t *testing.T) {
		err := NewExpense{
			Title:    strings.Repeat("a", MaxTitleLength+1),
			Amount:   &amount,
			Category: strings.Repeat("c", MaxCategoryLength+1),
			Notes:    strings.Repeat("n", MaxNotesLength+1),
		}.Validate()
		assert.Equal(t, []string{"title", "category", "notes"}, fieldsOf(t, err))
	})
}

func TestNewExpenseAmountLimit(t *testing.T) {
	over := Money{Cents: MaxAmountCents + 1}
	err := NewExpense{Title: "x", Amount: &over, Category: "c"}.Validate()
	assert.Equal(t, []string{"amount"}, fieldsOf(t, err))

	limit := Money{Cents: MaxAmountCents}
	assert.NoError(t, NewExpense{Title: "x", Amount: &limit, Category: "c"}.Validate())
}

func TestNewExpenseJSONKeepsParseErrors(t *testing.T) {
	t.Run("amount not a number", func(t *testing.T) {
		var n NewExpense
		require.NoError(t, json.Unmarshal([]byte(`{"title":"","amount":"abc","category":""}`), &n))
		assert.Nil(t, n.Amount)
		assert.Equal(t, []string{"title", "amount", "category"}, fieldsOf(t, n.Normalize().Validate()))
	})

	t.Run("date not a date", func(t *testing.T) {
		var n NewExpense
		require.NoError(t, json.Unmarshal([]byte(`{"title":"","amount":5,"date":"yesterday","category":""}`), &n))
		assert.Equal(t, []string{"title", "date", "category"}, fieldsOf(t, n.Normalize().Validate()))
	})

	t.Run("null amount and date", func(t *testing.T) {
		var n NewExpense
		require.NoError(t, json.Unmarshal([]byte(`{"title":"t","amount":null,"date":null,"category":"c"}`), &n))
		assert.Nil(t, n.Date)
		assert.Equal(t, []string{"amount"}, fieldsOf(t, n.Validate()))
	})

	t.Run("valid", func(t *testing.T) {
		var n NewExpense
		require.NoError(t, json.Unmarshal([]byte(`{"title":"t","amount":"12,50","date":"2024-10-01","category":"c","notes":"n"}`), &n))
		require.NoError(t, n.Validate())
		assert.Equal(t, int64(1250), n.Amount.Cents)
		assert.Equal(t, NewDate(2024, 10, 1), *n.Date)
	})

	t.Run("unknown field", func(t *testing.T) {
		var n NewExpense
		err := json.Unmarshal([]byte(`{"title":"t","user":"someone"}`), &n)
		require.Error(t, err)
		assert.Contains(t, err.Error(), `unknown field "user"`)
	})
}

func TestNewExpenseBuild(t *testing.T) {
	now := time.Date(2024, 10, 5, 12, 0, 0, 0, time.UTC)
	amount := Money{Cents: 1234}

	e := NewExpense{Title: "Taxi", Amount: &amount, Category: "Transport"}.Build("owner-1", now)
	assert.True(t, IsValidID(e.ID))
	assert.Equal(t, now, e.Date, "date defaults to creation time")
	assert.Equal(t, "owner-1", e.Owner)
	assert.Equal(t, int64(1234), e.Amount.Cents)

	d := NewDate(2024, 9, 30)
	e = NewExpense{Title: "Taxi", Amount: &amount, Category: "Transport", Date: &d}.Build("owner-1", now)
	assert.Equal(t, d.Time, e.Date)
}

func TestExpensePatchJSONPresence(t *testing.T) {
	var p ExpensePatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"New","notes":null}`), &p))

	assert.True(t, p.Title.Present)
	assert.Equal(t, "New", p.Title.Value)
	assert.False(t, p.Amount.Present)
	assert.True(t, p.Notes.Present)
	assert.True(t, p.Notes.Null)
	require.NoError(t, p.Validate())

	base := Expense{Title: "Old", Amount: Money{Cents: 500}, Category: "Food", Notes: "keep?"}
	updated := base.Apply(p, time.Now())
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, int64(500), updated.Amount.Cents, "absent field untouched")
	assert.Equal(t, "", updated.Notes, "explicit null clears notes")
}

func TestExpensePatchRejectsFalsyValues(t *testing.T) {
	var p ExpensePatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":"","amount":0,"category":null,"date":null}`), &p))
	err := p.Normalize().Validate()
	assert.ElementsMatch(t, []string{"title", "amount", "date", "category"}, fieldsOf(t, err))
}

func TestExpensePatchKeepsParseErrors(t *testing.T) {
	var p ExpensePatch
	require.NoError(t, json.Unmarshal([]byte(`{"title":7,"amount":"abc","date":"nope","category":""}`), &p))
	assert.True(t, p.Amount.Present)
	assert.True(t, p.Amount.Invalid())
	assert.True(t, p.Title.Invalid())

	err := p.Normalize().Validate()
	assert.Equal(t, []string{"title", "amount", "date", "category"}, fieldsOf(t, err))
}

func TestExpensePatchAmountLimit(t *testing.T) {
	err := ExpensePatch{Amount: Some(Money{Cents: MaxAmountCents + 1})}.Validate()
	assert.Equal(t, []string{"amount"}, fieldsOf(t, err))
}

func TestExpensePatchIsEmpty(t *testing.T) {
	assert.True(t, ExpensePatch{}.IsEmpty())
	assert.False(t, ExpensePatch{Amount: Some(Money{Cents: 1})}.IsEmpty())
}

func TestIDs(t *testing.T) {
	id := NewID()
	assert.Len(t, id, 24)
	assert.True(t, IsValidID(id))
	assert.False(t, IsValidID("invalidID"))
	assert.False(t, IsValidID(""))
}
