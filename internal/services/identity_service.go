package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"fintrack/internal/core"
	"fintrack/internal/storage"
)

const nameMaxLen = 150

// IdentityService registers users, checks credentials and manages the
// single auth token each user holds.
type IdentityService struct {
	repo       *storage.SQLiteRepository
	bcryptCost int
}

// NewIdentityService builds the service. A zero bcryptCost uses bcrypt's default.
func NewIdentityService(repo *storage.SQLiteRepository, bcryptCost int) *IdentityService {
	return &IdentityService{repo: repo, bcryptCost: bcryptCost}
}

// Register creates an ordinary user and issues its token.
func (s *IdentityService) Register(ctx context.Context, in core.RegisterInput) (core.User, string, error) {
	return s.CreateUser(ctx, in, false)
}

// CreateUser validates in, stores the user and issues its token.
func (s *IdentityService) CreateUser(ctx context.Context, in core.RegisterInput, staff bool) (core.User, string, error) {
	verr := core.NewValidationError()

	username := strings.TrimSpace(in.Username)
	if msg := core.ValidateUsername(username); msg != "" {
		verr.Add("username", msg)
	}
	email, msg := core.NormalizeEmail(in.Email)
	if msg != "" {
		verr.Add("email", msg)
	}
	if in.Password == "" {
		verr.Add("password", core.MsgRequired)
	} else {
		for _, p := range core.PasswordProblems(in.Password, username, email) {
			verr.Add("password", p)
		}
	}
	firstName := checkName(verr, "first_name", in.FirstName)
	lastName := checkName(verr, "last_name", in.LastName)

	var hash string
	if !verr.Has("password") {
		var err error
		if hash, err = core.HashPassword(in.Password, s.bcryptCost); err != nil {
			return core.User{}, "", err
		}
	}

	var (
		user  core.User
		token string
	)
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		if !verr.Has("username") {
			exists, err := q.UsernameExists(ctx, username)
			if err != nil {
				return err
			}
			if exists {
				verr.Add("username", core.MsgUsernameTaken)
			}
		}
		if !verr.Has("email") {
			taken, err := q.EmailTaken(ctx, email, 0)
			if err != nil {
				return err
			}
			if taken {
				verr.Add("email", core.MsgEmailTaken)
			}
		}
		if err := verr.Err(); err != nil {
			return err
		}

		var err error
		user, err = q.CreateUser(ctx, core.User{
			Username:     username,
			Email:        email,
			PasswordHash: hash,
			FirstName:    firstName,
			LastName:     lastName,
			IsActive:     true,
			IsStaff:      staff,
		})
		if err != nil {
			return userConstraintError(err)
		}

		key, err := core.GenerateToken()
		if err != nil {
			return err
		}
		token, err = q.EnsureToken(ctx, user.ID, key)
		return err
	})
	if err != nil {
		return core.User{}, "", err
	}

	slog.InfoContext(ctx, "User registered", "user_id", user.ID, "username", user.Username, "staff", staff)
	return user, token, nil
}

// Login accepts a username, or an email address when identifier contains
// "@". It returns the user's live token, creating one when absent.
func (s *IdentityService) Login(ctx context.Context, identifier, password string) (core.User, string, error) {
	identifier = strings.TrimSpace(identifier)
	verr := core.NewValidationError()
	if identifier == "" {
		verr.Add("username", core.MsgRequired)
	}
	if password == "" {
		verr.Add("password", core.MsgRequired)
	}
	if err := verr.Err(); err != nil {
		return core.User{}, "", err
	}

	q := s.repo.Queries()
	var (
		user core.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = q.GetUserByEmail(ctx, identifier)
	} else {
		user, err = q.GetUserByUsername(ctx, identifier)
	}
	if errors.Is(err, core.ErrNotFound) {
		slog.InfoContext(ctx, "Login failed", "reason", "unknown user")
		return core.User{}, "", core.ErrAuthentication
	}
	if err != nil {
		return core.User{}, "", err
	}
	if !core.CheckPassword(user.PasswordHash, password) {
		slog.InfoContext(ctx, "Login failed", "reason", "bad password", "user_id", user.ID)
		return core.User{}, "", core.ErrAuthentication
	}
	if !user.IsActive {
		slog.InfoContext(ctx, "Login failed", "reason", "inactive", "user_id", user.ID)
		return core.User{}, "", core.ErrAccountDisabled
	}

	key, err := core.GenerateToken()
	if err != nil {
		return core.User{}, "", err
	}
	token, err := q.EnsureToken(ctx, user.ID, key)
	if err != nil {
		return core.User{}, "", err
	}
	return user, token, nil
}

// Logout deletes the caller's token. core.ErrNotFound when none exists.
func (s *IdentityService) Logout(ctx context.Context, userID int64) error {
	if err := s.repo.Queries().DeleteToken(ctx, userID); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User logged out", "user_id", userID)
	return nil
}

// Authenticate resolves a token to its active owner.
func (s *IdentityService) Authenticate(ctx context.Context, token string) (core.User, error) {
	if token == "" {
		return core.User{}, core.ErrUnauthenticated
	}
	user, err := s.repo.Queries().UserByToken(ctx, token)
	if errors.Is(err, core.ErrNotFound) {
		return core.User{}, core.ErrUnauthenticated
	}
	if err != nil {
		return core.User{}, fmt.Errorf("authenticate: %w", err)
	}
	if !user.IsActive {
		return core.User{}, core.ErrUnauthenticated
	}
	return user, nil
}

func (s *IdentityService) Profile(ctx context.Context, userID int64) (core.User, error) {
	return s.repo.Queries().GetUserByID(ctx, userID)
}

// UpdateProfile changes only the supplied fields.
func (s *IdentityService) UpdateProfile(ctx context.Context, userID int64, in core.ProfileInput) (core.User, error) {
	verr := core.NewValidationError()

	var email string
	if in.Email != nil {
		var msg string
		if email, msg = core.NormalizeEmail(*in.Email); msg != "" {
			verr.Add("email", msg)
		}
	}

	var user core.User
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		var err error
		if user, err = q.GetUserByID(ctx, userID); err != nil {
			return err
		}
		if in.FirstName != nil {
			user.FirstName = checkName(verr, "first_name", *in.FirstName)
		}
		if in.LastName != nil {
			user.LastName = checkName(verr, "last_name", *in.LastName)
		}
		if in.Email != nil && !verr.Has("email") {
			taken, err := q.EmailTaken(ctx, email, userID)
			if err != nil {
				return err
			}
			if taken {
				verr.Add("email", core.MsgEmailTaken)
			}
			user.Email = email
		}
		if err := verr.Err(); err != nil {
			return err
		}
		return userConstraintError(q.UpdateProfile(ctx, user))
	})
	if err != nil {
		return core.User{}, err
	}
	return user, nil
}

// ChangePassword verifies oldPassword, stores the new hash and replaces the
// user's token in one transaction. It returns the new token.
func (s *IdentityService) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) (string, error) {
	user, err := s.repo.Queries().GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}

	verr := core.NewValidationError()
	switch {
	case oldPassword == "":
		verr.Add("old_password", core.MsgRequired)
	case !core.CheckPassword(user.PasswordHash, oldPassword):
		verr.Add("old_password", core.MsgOldPasswordWrong)
	}
	if newPassword == "" {
		verr.Add("new_password", core.MsgRequired)
	} else {
		for _, p := range core.PasswordProblems(newPassword, user.Username, user.Email) {
			verr.Add("new_password", p)
		}
	}
	if err := verr.Err(); err != nil {
		return "", err
	}

	hash, err := core.HashPassword(newPassword, s.bcryptCost)
	if err != nil {
		return "", err
	}
	token, err := core.GenerateToken()
	if err != nil {
		return "", err
	}

	err = s.repo.InTx(ctx, func(q *storage.Queries) error {
		if err := q.SetPasswordHash(ctx, userID, hash); err != nil {
			return err
		}
		return q.ReplaceToken(ctx, userID, token)
	})
	if err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Password changed, token rotated", "user_id", userID)
	return token, nil
}

// SetActive enables or disables a user. Disabled users keep their token but
// fail authentication until re-enabled.
func (s *IdentityService) SetActive(ctx context.Context, username string, active bool) error {
	if err := s.repo.Queries().SetUserActive(ctx, strings.TrimSpace(username), active); err != nil {
		return err
	}
	slog.InfoContext(ctx, "User active flag changed", "username", username, "active", active)
	return nil
}

// CreateMissingTokens issues a token to every user lacking one and returns them.
func (s *IdentityService) CreateMissingTokens(ctx context.Context) ([]core.User, error) {
	var served []core.User
	err := s.repo.InTx(ctx, func(q *storage.Queries) error {
		users, err := q.ListUsersWithoutToken(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			key, err := core.GenerateToken()
			if err != nil {
				return err
			}
			if _, err := q.EnsureToken(ctx, u.ID, key); err != nil {
				return fmt.Errorf("issue token for %s: %w", u.Username, err)
			}
			served = append(served, u)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return served, nil
}

func checkName(verr *core.ValidationError, field, value string) string {
	value = strings.TrimSpace(value)
	if utf8.RuneCountInString(value) > nameMaxLen {
		verr.Add(field, fmt.Sprintf("Ensure this field has no more than %d characters.", nameMaxLen))
	}
	return value
}

// userConstraintError turns a unique violation on users into the field error
// the fast-path check would have produced.
func userConstraintError(err error) error {
	var ce *storage.ConstraintError
	if !errors.As(err, &ce) {
		return err
	}
	switch {
	case ce.Touches("username"):
		return core.FieldError("username", core.MsgUsernameTaken)
	case ce.Touches("email"):
		return core.FieldError("email", core.MsgEmailTaken)
	}
	return err
}
