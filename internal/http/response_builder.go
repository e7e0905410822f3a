// Package http exposes the ledger over a JSON API.
//
// This file builds response bodies: the status envelope used by the auth
// endpoints and errors, and the resource representations.
package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Envelope is the body of auth responses and of every error.
type Envelope struct {
	Status  string              `json:"status"`
	Message string              `json:"message,omitempty"`
	Errors  map[string][]string `json:"errors,omitempty"`
	User    any                 `json:"user,omitempty"`
	Token   string              `json:"token,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if body == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(body)
}

func writeSuccess(w http.ResponseWriter, status int, env Envelope) {
	env.Status = statusSuccess
	writeJSON(w, status, env)
}

// errMalformedBody marks a request body that is not a JSON object.
var errMalformedBody = errors.New("malformed request body")

// loginFailed marks credential errors raised by the login endpoint, which
// answer 400 with the message under non_field_errors.
type loginFailed struct{ err error }

func (e loginFailed) Error() string { return e.err.Error() }
func (e loginFailed) Unwrap() error { return e.err }

// writeError maps err onto the error envelope. Anything unexpected is
// logged and answered with a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr  *core.ValidationError
		login loginFailed
	)
	switch {
	case errors.As(err, &verr):
		message := "Validation failed"
		if errors.As(err, &login) {
			message = "Login failed"
		}
		writeJSON(w, http.StatusBadRequest, Envelope{Status: statusError, Message: message, Errors: verr.Map()})
	case errors.Is(err, errMalformedBody):
		writeJSON(w, http.StatusBadRequest, Envelope{Status: statusError, Message: "Malformed request body."})
	case errors.Is(err, core.ErrAuthentication):
		msg := "Unable to log in with provided credentials."
		if errors.Is(err, core.ErrAccountDisabled) {
			msg = "User account is disabled."
		}
		writeJSON(w, http.StatusBadRequest, Envelope{
			Status:  statusError,
			Message: "Login failed",
			Errors:  map[string][]string{core.NonFieldKey: {msg}},
		})
	case errors.Is(err, core.ErrUnauthenticated):
		w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
		writeJSON(w, http.StatusUnauthorized, Envelope{Status: statusError, Message: "Authentication credentials were not provided or are invalid."})
	case errors.Is(err, core.ErrInvalidPage):
		writeJSON(w, http.StatusNotFound, Envelope{Status: statusError, Message: "Invalid page."})
	case errors.Is(err, core.ErrNotFound):
		writeJSON(w, http.StatusNotFound, Envelope{Status: statusError, Message: "Not found."})
	default:
		logger := applog.NewStructuredLogger(applog.FromContext(r.Context()))
		logger.LogError(r.Context(), "Request failed", err, r.Method+" "+r.URL.Path,
			applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
		writeJSON(w, http.StatusInternalServerError, Envelope{Status: statusError, Message: "A server error occurred."})
	}
}

// userRef is the owner nested in every resource.
type userRef struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// userSummary is returned by register and login.
type userSummary struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type profileResponse struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	IsStaff    bool      `json:"is_staff"`
	IsActive   bool      `json:"is_active"`
	DateJoined time.Time `json:"date_joined"`
}

type categoryRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type categoryResponse struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	User      userRef   `json:"user"`
	CreatedAt time.Time `json:"created_at"`
}

type transactionResponse struct {
	ID             int64        `json:"id"`
	User           userRef      `json:"user"`
	Category       *int64       `json:"category"`
	CategoryDetail *categoryRef `json:"category_detail"`
	Amount         string       `json:"amount"`
	Description    string       `json:"description"`
	Date           string       `json:"date"`
	Type           string       `json:"transaction_type"`
	CreatedAt      time.Time    `json:"created_at"`
}

type budgetResponse struct {
	ID             int64       `json:"id"`
	User           userRef     `json:"user"`
	Category       int64       `json:"category"`
	CategoryDetail categoryRef `json:"category_detail"`
	Amount         string      `json:"amount"`
	Month          int         `json:"month"`
	MonthName      string      `json:"month_name"`
	Year           int         `json:"year"`
	CreatedAt      time.Time   `json:"created_at"`
}

type activityResponse struct {
	Entity     string    `json:"entity"`
	EntityID   int64     `json:"entity_id"`
	Action     string    `json:"action"`
	OccurredAt time.Time `json:"occurred_at"`
}

// pageResponse is the paginated list body.
type pageResponse[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func newUserRef(u core.User) userRef {
	return userRef{ID: u.ID, Username: u.Username, Email: u.Email}
}

func newUserSummary(u core.User) userSummary {
	return userSummary{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func newProfile(u core.User) profileResponse {
	return profileResponse{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		IsStaff:    u.IsStaff,
		IsActive:   u.IsActive,
		DateJoined: u.DateJoined,
	}
}

func newCategory(c core.Category, owner core.User) categoryResponse {
	return categoryResponse{ID: c.ID, Name: c.Name, User: newUserRef(owner), CreatedAt: c.CreatedAt}
}

func newTransaction(t core.Transaction, owner core.User) transactionResponse {
	resp := transactionResponse{
		ID:          t.ID,
		User:        newUserRef(owner),
		Category:    t.CategoryID,
		Amount:      t.Amount.String(),
		Description: t.Description,
		Date:        t.Date.String(),
		Type:        string(t.Type),
		CreatedAt:   t.CreatedAt,
	}
	if t.Category != nil {
		resp.CategoryDetail = &categoryRef{ID: t.Category.ID, Name: t.Category.Name}
	}
	return resp
}

func newBudget(b core.Budget, owner core.User) budgetResponse {
	return budgetResponse{
		ID:             b.ID,
		User:           newUserRef(owner),
		Category:       b.CategoryID,
		CategoryDetail: categoryRef{ID: b.Category.ID, Name: b.Category.Name},
		Amount:         b.Amount.String(),
		Month:          b.Month,
		MonthName:      core.MonthName(b.Month),
		Year:           b.Year,
		CreatedAt:      b.CreatedAt,
	}
}

func newActivity(e core.ActivityEntry) activityResponse {
	return activityResponse{Entity: e.Entity, EntityID: e.EntityID, Action: e.Action, OccurredAt: e.OccurredAt}
}

// newPage renders page with absolute next and previous links built from r.
func newPage[T, R any](r *http.Request, page core.Page[T], render func(T) R) pageResponse[R] {
	resp := pageResponse[R]{Count: page.Count, Results: make([]R, 0, len(page.Items))}
	for _, item := range page.Items {
		resp.Results = append(resp.Results, render(item))
	}
	if page.HasNext() {
		link := pageLink(r, page.Number+1)
		resp.Next = &link
	}
	if page.HasPrevious() {
		link := pageLink(r, page.Number-1)
		resp.Previous = &link
	}
	return resp
}

// pageLink rewrites the request URL to point at page n. The first page
// drops the parameter, as the client never sent one for it.
func pageLink(r *http.Request, n int) string {
	u := url.URL{Scheme: requestScheme(r), Host: r.Host, Path: r.URL.Path}
	q := r.URL.Query()
	if n <= 1 {
		q.Del("page")
	} else {
		q.Set("page", strconv.Itoa(n))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// absoluteURL builds a link to path on the host the client used.
func absoluteURL(r *http.Request, path string) string {
	u := url.URL{Scheme: requestScheme(r), Host: r.Host, Path: path}
	return u.String()
}

func requestScheme(r *http.Request) string {
	if r.TLS != nil {
		return "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto == "https" {
		return proto
	}
	return "http"
}
