package core

import (
	"errors"
	"strings"
)

var ErrInvalidPage = errors.New("invalid page")

// Ordering keys accepted by each list endpoint.
var (
	CategoryOrderKeys    = []string{"name", "created_at"}
	TransactionOrderKeys = []string{"date", "amount", "created_at", "category__name"}
	BudgetOrderKeys      = []string{"year", "month", "amount", "category__name"}
)

type (
	// OrderField is one ordering key, descending when Desc is set.
	OrderField struct {
		Key  string
		Desc bool
	}

	Ordering []OrderField

	PageRequest struct {
		Number int
		Size   int
	}

	// Page is one slice of a filtered listing plus the total match count.
	Page[T any] struct {
		Items  []T
		Count  int
		Number int
		Size   int
	}

	CategoryFilter struct {
		NameContains string
		Search       string
		Ordering     Ordering
		Page         PageRequest
	}

	TransactionFilter struct {
		CategoryID *int64
		MinAmount  *Money
		MaxAmount  *Money
		StartDate  *Date
		EndDate    *Date
		Type       TransactionType
		Search     string
		Ordering   Ordering
		Page       PageRequest
	}

	BudgetFilter struct {
		CategoryID *int64
		Month      *int
		Year       *int
		MinAmount  *Money
		MaxAmount  *Money
		Search     string
		Ordering   Ordering
		Page       PageRequest
	}
)

// ParseOrdering reads a comma separated ordering parameter such as "-date,amount".
// Keys outside allowed are dropped, as are repeats.
func ParseOrdering(raw string, allowed []string) Ordering {
	var out Ordering
	seen := make(map[string]bool)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		desc := strings.HasPrefix(part, "-")
		key := strings.TrimPrefix(part, "-")
		if key == "" || seen[key] || !contains(allowed, key) {
			continue
		}
		seen[key] = true
		out = append(out, OrderField{Key: key, Desc: desc})
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func (p PageRequest) Offset() int {
	if p.Number < 1 {
		return 0
	}
	return (p.Number - 1) * p.Size
}

// pageCount is the number of pages count rows fill, computed without
// multiplying the page number so huge numbers cannot overflow.
func pageCount(count, size int) int {
	if size < 1 || count < 1 {
		return 0
	}
	return (count-1)/size + 1
}

// CheckBounds rejects a page past the last one. The first page always exists.
func (p PageRequest) CheckBounds(count int) error {
	if p.Number > 1 && p.Number > pageCount(count, p.Size) {
		return ErrInvalidPage
	}
	return nil
}

func (p Page[T]) HasNext() bool {
	return p.Number < pageCount(p.Count, p.Size)
}

func (p Page[T]) HasPrevious() bool {
	return p.Number > 1
}
