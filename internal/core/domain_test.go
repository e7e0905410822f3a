package core

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-05-01")
	require.NoError(t, err)
	assert.Equal(t, NewDate(2024, 5, 1), d)
	assert.Equal(t, "2024-05-01", d.String())

	for _, bad := range []string{"", "2024-13-01", "01/05/2024", "2024-02-30"} {
		_, err := ParseDate(bad)
		assert.Error(t, err, bad)
	}
}

func TestParseTransactionType(t *testing.T) {
	for _, in := range []string{"INCOME", "expense", " Transfer "} {
		_, ok := ParseTransactionType(in)
		assert.True(t, ok, in)
	}
	_, ok := ParseTransactionType("EX")
	assert.False(t, ok)
}

func TestNormalizeCategoryName(t *testing.T) {
	name, verr := NormalizeCategoryName("  Groceries ")
	assert.Equal(t, "Groceries", name)
	assert.True(t, verr.Empty())

	_, verr = NormalizeCategoryName(" a ")
	assert.Equal(t, []string{"Category name must be at least 2 characters long."}, verr.Fields["name"])

	_, verr = NormalizeCategoryName(strings.Repeat("x", CategoryNameMaxLen+1))
	assert.True(t, verr.Has("name"))
}

func TestTransactionValidate(t *testing.T) {
	good := Transaction{
		Amount:      Money{Cents: 4550},
		Description: "  Weekly shop ",
		Date:        NewDate(2024, 5, 1),
		Type:        TransactionExpense,
	}
	verr := NewValidationError()
	good.Validate(verr)
	require.True(t, verr.Empty(), verr.Error())
	assert.Equal(t, "Weekly shop", good.Description)

	bad := Transaction{Amount: Money{Cents: 0}, Description: " x ", Type: "LOAN"}
	verr = NewValidationError()
	bad.Validate(verr)
	assert.Equal(t, []string{"Amount must be greater than zero."}, verr.Fields["amount"])
	assert.Equal(t, []string{"Description must be at least 2 characters long."}, verr.Fields["description"])
	assert.True(t, verr.Has("date"))
	assert.True(t, verr.Has("transaction_type"))
}

func TestTransactionValidateSkipsReportedFields(t *testing.T) {
	verr := NewValidationError()
	TransactionInput{}.Apply(&Transaction{Type: TransactionExpense}, true, verr)
	tx := Transaction{Type: TransactionExpense}
	tx.Validate(verr)
	assert.Equal(t, []string{MsgRequired}, verr.Fields["amount"])
	assert.Equal(t, []string{MsgRequired}, verr.Fields["date"])
}

func TestCheckBudgetYear(t *testing.T) {
	now := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		year int
		ok   bool
	}{
		{2021, true},
		{2031, true},
		{2026, true},
		{2020, false},
		{2032, false},
		{1999, false},
		{2106, false},
	}
	for _, tc := range cases {
		msg := CheckBudgetYear(tc.year, now)
		if tc.ok {
			assert.Empty(t, msg, "year %d", tc.year)
		} else {
			assert.NotEmpty(t, msg, "year %d", tc.year)
		}
	}
	assert.Equal(t, "Year must be within 5 years of the current year (2026).", CheckBudgetYear(2040, now))
}

func TestBudgetValidate(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, month := range []int{0, 13} {
		b := Budget{CategoryID: 1, Amount: Money{Cents: 100}, Month: month, Year: 2024}
		verr := NewValidationError()
		b.Validate(verr, now, true)
		assert.Equal(t, []string{MsgMonthRange}, verr.Fields["month"])
	}

	old := Budget{CategoryID: 1, Amount: Money{Cents: 100}, Month: 5, Year: 2001}
	verr := NewValidationError()
	old.Validate(verr, now, false)
	assert.True(t, verr.Empty())

	verr = NewValidationError()
	old.Validate(verr, now, true)
	assert.True(t, verr.Has("year"))
}

func TestMonthName(t *testing.T) {
	assert.Equal(t, "January", MonthName(1))
	assert.Equal(t, "May", MonthName(5))
	assert.Equal(t, "December", MonthName(12))
	assert.Empty(t, MonthName(0))
}

func TestValidationErrorMap(t *testing.T) {
	verr := FieldError("name", "bad")
	verr.AddNonField("clash")
	assert.Equal(t, map[string][]string{"name": {"bad"}, NonFieldKey: {"clash"}}, verr.Map())
	assert.Equal(t, "validation failed: name: bad; non_field_errors: clash", verr.Error())
	assert.Nil(t, NewValidationError().Err())
	assert.Error(t, verr.Err())
}
