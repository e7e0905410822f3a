// Package http exposes the ledger over a JSON API.
//
// This file decodes request bodies and list query strings into core types,
// collecting per-field messages instead of failing on the first problem.
package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"fintrack/internal/core"
)

const maxBodyBytes = 1 << 20

// payload is a decoded JSON object whose fields are read lazily, so a
// field that is absent can be told apart from one set to null.
type payload map[string]json.RawMessage

// decodePayload reads the request body as one JSON object. An empty body
// is an empty object.
func decodePayload(w http.ResponseWriter, r *http.Request) (payload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return payload{}, nil
	}
	var p payload
	if err := json.Unmarshal(body, &p); err != nil || p == nil {
		return nil, errMalformedBody
	}
	return p, nil
}

func (p payload) has(key string) bool {
	_, ok := p[key]
	return ok
}

func (p payload) isNull(key string) bool {
	raw, ok := p[key]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// scalar returns a string or number field as text. ok is false when the
// field holds anything else.
func (p payload) scalar(key string) (string, bool) {
	raw := bytes.TrimSpace(p[key])
	if len(raw) == 0 {
		return "", false
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", false
		}
		return s, true
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		return string(raw), true
	}
	return "", false
}

// str reads a text field; nil when absent. Null is reported as an error.
func (p payload) str(key string, verr *core.ValidationError) *string {
	if !p.has(key) {
		return nil
	}
	if p.isNull(key) {
		verr.Add(key, "This field may not be null.")
		return nil
	}
	s, ok := p.scalar(key)
	if !ok {
		verr.Add(key, "Not a valid string.")
		return nil
	}
	return &s
}

func (p payload) money(key string, verr *core.ValidationError) *core.Money {
	s := p.str(key, verr)
	if s == nil {
		return nil
	}
	m, err := core.ParseMoney(*s)
	if err != nil {
		verr.Add(key, core.MoneyMessage(err))
		return nil
	}
	return &m
}

func (p payload) integer(key string, verr *core.ValidationError) *int {
	s := p.str(key, verr)
	if s == nil {
		return nil
	}
	n, err := strconv.Atoi(trimZeroFraction(strings.TrimSpace(*s)))
	if err != nil {
		verr.Add(key, core.MsgInvalidInteger)
		return nil
	}
	return &n
}

// trimZeroFraction turns "2024.0" or "2024." into "2024"; any other
// fraction is left for the integer parse to reject.
func trimZeroFraction(s string) string {
	whole, frac, ok := strings.Cut(s, ".")
	if ok && strings.Trim(frac, "0") == "" {
		return whole
	}
	return s
}

func (p payload) date(key string, verr *core.ValidationError) *core.Date {
	s := p.str(key, verr)
	if s == nil {
		return nil
	}
	d, err := core.ParseDate(*s)
	if err != nil {
		verr.Add(key, core.MsgInvalidDate)
		return nil
	}
	return &d
}

// pk reads a primary key reference. set reports whether the field was
// present at all; a null value yields set with a nil id.
func (p payload) pk(key string, verr *core.ValidationError) (id *int64, set bool) {
	if !p.has(key) {
		return nil, false
	}
	if p.isNull(key) {
		return nil, true
	}
	s, ok := p.scalar(key)
	if !ok {
		verr.Add(key, core.MsgInvalidPK)
		return nil, true
	}
	n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || n < 1 {
		verr.Add(key, core.MsgInvalidPK)
		return nil, true
	}
	return &n, true
}

func transactionInput(p payload, verr *core.ValidationError) core.TransactionInput {
	in := core.TransactionInput{
		Amount:      p.money("amount", verr),
		Description: p.str("description", verr),
		Date:        p.date("date", verr),
	}
	in.CategoryID, in.CategorySet = p.pk("category", verr)
	if raw := p.str("transaction_type", verr); raw != nil {
		if t, ok := core.ParseTransactionType(*raw); ok {
			in.Type = &t
		} else {
			verr.Add("transaction_type", fmt.Sprintf("%q is not a valid choice.", *raw))
		}
	}
	return in
}

func budgetInput(p payload, verr *core.ValidationError) core.BudgetInput {
	in := core.BudgetInput{
		Amount: p.money("amount", verr),
		Month:  p.integer("month", verr),
		Year:   p.integer("year", verr),
	}
	if p.isNull("category") {
		verr.Add("category", "This field may not be null.")
	} else {
		in.CategoryID, _ = p.pk("category", verr)
	}
	return in
}

func profileInput(p payload, verr *core.ValidationError) core.ProfileInput {
	return core.ProfileInput{
		FirstName: p.str("first_name", verr),
		LastName:  p.str("last_name", verr),
		Email:     p.str("email", verr),
	}
}

// text returns a string field, or "" when absent or not a string.
func (p payload) text(key string) string {
	s, _ := p.scalar(key)
	return s
}

// pathID parses the {id} path segment. Anything but a positive integer is
// treated as a missing row.
func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id < 1 {
		return 0, core.ErrNotFound
	}
	return id, nil
}

// pageParams reads page and page_size. A page that is not a positive
// integer, or whose offset would overflow, is an invalid page; a bad
// page_size falls back to the default.
func pageParams(q url.Values, defaultSize, maxSize int) (core.PageRequest, error) {
	req := core.PageRequest{Number: 1, Size: defaultSize}
	if v := strings.TrimSpace(q.Get("page")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return req, core.ErrInvalidPage
		}
		req.Number = n
	}
	if v := strings.TrimSpace(q.Get("page_size")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			req.Size = min(n, maxSize)
		}
	}
	// The row offset has to fit in an int.
	if req.Number-1 > math.MaxInt/req.Size {
		return req, core.ErrInvalidPage
	}
	return req, nil
}

// queryReader parses optional list filters, collecting a message per bad key.
type queryReader struct {
	q    url.Values
	verr *core.ValidationError
}

func (qr queryReader) get(key string) string {
	return strings.TrimSpace(qr.q.Get(key))
}

func (qr queryReader) id(key string) *int64 {
	v := qr.get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		qr.verr.Add(key, "Enter a number.")
		return nil
	}
	return &n
}

func (qr queryReader) integer(key string) *int {
	v := qr.get(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		qr.verr.Add(key, "Enter a number.")
		return nil
	}
	return &n
}

func (qr queryReader) money(key string) *core.Money {
	v := qr.get(key)
	if v == "" {
		return nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		qr.verr.Add(key, "Enter a number.")
		return nil
	}
	return &m
}

func (qr queryReader) date(key string) *core.Date {
	v := qr.get(key)
	if v == "" {
		return nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		qr.verr.Add(key, "Enter a valid date.")
		return nil
	}
	return &d
}

func (qr queryReader) transactionType(key string) core.TransactionType {
	v := qr.get(key)
	if v == "" {
		return ""
	}
	t, ok := core.ParseTransactionType(v)
	if !ok {
		qr.verr.Add(key, fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", v))
	}
	return t
}

func categoryFilter(q url.Values) (core.CategoryFilter, error) {
	qr := queryReader{q: q, verr: core.NewValidationError()}
	f := core.CategoryFilter{
		NameContains: qr.get("name"),
		Search:       qr.get("search"),
		Ordering:     core.ParseOrdering(q.Get("ordering"), core.CategoryOrderKeys),
	}
	return f, qr.verr.Err()
}

func transactionFilter(q url.Values) (core.TransactionFilter, error) {
	qr := queryReader{q: q, verr: core.NewValidationError()}
	f := core.TransactionFilter{
		CategoryID: qr.id("category"),
		MinAmount:  qr.money("min_amount"),
		MaxAmount:  qr.money("max_amount"),
		StartDate:  qr.date("start_date"),
		EndDate:    qr.date("end_date"),
		Type:       qr.transactionType("transaction_type"),
		Search:     qr.get("search"),
		Ordering:   core.ParseOrdering(q.Get("ordering"), core.TransactionOrderKeys),
	}
	return f, qr.verr.Err()
}

func budgetFilter(q url.Values) (core.BudgetFilter, error) {
	qr := queryReader{q: q, verr: core.NewValidationError()}
	f := core.BudgetFilter{
		CategoryID: qr.id("category"),
		Month:      qr.integer("month"),
		Year:       qr.integer("year"),
		MinAmount:  qr.money("min_amount"),
		MaxAmount:  qr.money("max_amount"),
		Search:     qr.get("search"),
		Ordering:   core.ParseOrdering(q.Get("ordering"), core.BudgetOrderKeys),
	}
	return f, qr.verr.Err()
}

// bearerToken extracts the token from "Bearer <t>" or "Token <t>".
func bearerToken(header string) (string, error) {
	if header == "" {
		return "", core.ErrUnauthenticated
	}
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok {
		return "", core.ErrUnauthenticated
	}
	if !strings.EqualFold(scheme, "Bearer") && !strings.EqualFold(scheme, "Token") {
		return "", core.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" || strings.ContainsAny(token, " \t") {
		return "", core.ErrUnauthenticated
	}
	return token, nil
}
