package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	TransactionIncome   TransactionType = "INCOME"
	TransactionExpense  TransactionType = "EXPENSE"
	TransactionTransfer TransactionType = "TRANSFER"
)

const (
	CategoryNameMinLen = 2
	CategoryNameMaxLen = 100
	DescriptionMinLen  = 2
	DescriptionMaxLen  = 255
	BudgetYearMin      = 2000
	BudgetYearMax      = 2100
	BudgetYearWindow   = 5
	dateLayout         = "2006-01-02"
)

type (
	TransactionType string

	// Date is a calendar day without a time component.
	Date struct {
		time.Time
	}

	User struct {
		ID           int64
		Username     string
		Email        string
		PasswordHash string
		FirstName    string
		LastName     string
		IsActive     bool
		IsStaff      bool
		DateJoined   time.Time
	}

	// CategoryRef is the id and name pair embedded in transactions and budgets.
	CategoryRef struct {
		ID   int64
		Name string
	}

	Category struct {
		ID        int64
		UserID    int64
		Name      string
		CreatedAt time.Time
	}

	Transaction struct {
		ID          int64
		UserID      int64
		CategoryID  *int64
		Category    *CategoryRef
		Amount      Money
		Description string
		Date        Date
		Type        TransactionType
		CreatedAt   time.Time
	}

	Budget struct {
		ID         int64
		UserID     int64
		CategoryID int64
		Category   CategoryRef
		Amount     Money
		Month      int
		Year       int
		CreatedAt  time.Time
	}

	// ActivityEntry is one recorded domain event.
	ActivityEntry struct {
		ID         int64
		UserID     int64
		Entity     string
		EntityID   int64
		Action     string
		OccurredAt time.Time
		RecordedAt time.Time
	}
)

// ParseTransactionType accepts INCOME, EXPENSE or TRANSFER.
func ParseTransactionType(s string) (TransactionType, bool) {
	switch t := TransactionType(strings.ToUpper(strings.TrimSpace(s))); t {
	case TransactionIncome, TransactionExpense, TransactionTransfer:
		return t, true
	}
	return "", false
}

func (t TransactionType) Valid() bool {
	_, ok := ParseTransactionType(string(t))
	return ok
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

// FullName joins first and last name.
func (u User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Ref returns the id and name pair for embedding.
func (c Category) Ref() CategoryRef {
	return CategoryRef{ID: c.ID, Name: c.Name}
}

// NormalizeCategoryName trims name and reports the length violations.
func NormalizeCategoryName(name string) (string, *ValidationError) {
	name = strings.TrimSpace(name)
	verr := NewValidationError()
	switch n := utf8.RuneCountInString(name); {
	case n < CategoryNameMinLen:
		verr.Add("name", "Category name must be at least 2 characters long.")
	case n > CategoryNameMaxLen:
		verr.Add("name", fmt.Sprintf("Ensure this field has no more than %d characters.", CategoryNameMaxLen))
	}
	return name, verr
}

// Validate checks the transaction's own fields and normalizes the description.
// Fields already reported in verr are skipped.
func (t *Transaction) Validate(verr *ValidationError) {
	if !verr.Has("amount") && !t.Amount.IsPositive() {
		verr.Add("amount", "Amount must be greater than zero.")
	}
	if !verr.Has("description") {
		t.Description = strings.TrimSpace(t.Description)
		switch n := utf8.RuneCountInString(t.Description); {
		case n < DescriptionMinLen:
			verr.Add("description", "Description must be at least 2 characters long.")
		case n > DescriptionMaxLen:
			verr.Add("description", fmt.Sprintf("Ensure this field has no more than %d characters.", DescriptionMaxLen))
		}
	}
	if !verr.Has("date") && t.Date.IsZero() {
		verr.Add("date", MsgRequired)
	}
	if !verr.Has("transaction_type") && !t.Type.Valid() {
		verr.Add("transaction_type", fmt.Sprintf("%q is not a valid choice.", t.Type))
	}
}

// Validate checks the budget's own fields. The year window is only applied
// when checkYear is set, so rows written in earlier years stay editable.
func (b *Budget) Validate(verr *ValidationError, now time.Time, checkYear bool) {
	if !verr.Has("amount") && !b.Amount.IsPositive() {
		verr.Add("amount", "Budget amount must be greater than zero.")
	}
	if !verr.Has("month") && (b.Month < 1 || b.Month > 12) {
		verr.Add("month", MsgMonthRange)
	}
	if !verr.Has("year") && checkYear {
		if msg := CheckBudgetYear(b.Year, now); msg != "" {
			verr.Add("year", msg)
		}
	}
	if !verr.Has("category") && b.CategoryID == 0 {
		verr.Add("category", MsgRequired)
	}
}

// CheckBudgetYear returns the message for a year outside the storable range
// or the window around now, or "" when the year is acceptable.
func CheckBudgetYear(year int, now time.Time) string {
	switch {
	case year < BudgetYearMin:
		return fmt.Sprintf("Ensure this value is greater than or equal to %d.", BudgetYearMin)
	case year > BudgetYearMax:
		return fmt.Sprintf("Ensure this value is less than or equal to %d.", BudgetYearMax)
	}
	current := now.Year()
	if year < current-BudgetYearWindow || year > current+BudgetYearWindow {
		return fmt.Sprintf("Year must be within %d years of the current year (%d).", BudgetYearWindow, current)
	}
	return ""
}

// MonthName returns the English month name for 1..12, or "" otherwise.
func MonthName(month int) string {
	if month < 1 || month > 12 {
		return ""
	}
	return time.Month(month).String()
}
