package http

import (
	"errors"
	"net/http"

	"fintrack/internal/core"
)

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	verr := core.NewValidationError()
	in := core.RegisterInput{}
	for key, dst := range map[string]*string{
		"username":   &in.Username,
		"email":      &in.Email,
		"password":   &in.Password,
		"first_name": &in.FirstName,
		"last_name":  &in.LastName,
	} {
		if v := p.str(key, verr); v != nil {
			*dst = *v
		}
	}
	if err := verr.Err(); err != nil {
		return err
	}

	user, token, err := s.svc.Identity.Register(r.Context(), in)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusCreated, Envelope{
		Message: "User created successfully",
		User:    newUserSummary(user),
		Token:   token,
	})
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	identifier := p.text("username")
	if identifier == "" {
		identifier = p.text("email")
	}

	user, token, err := s.svc.Identity.Login(r.Context(), identifier, p.text("password"))
	if err != nil {
		return loginFailed{err}
	}
	writeSuccess(w, http.StatusOK, Envelope{
		Message: "Login successful",
		User:    newUserSummary(user),
		Token:   token,
	})
	return nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, user core.User) error {
	err := s.svc.Identity.Logout(r.Context(), user.ID)
	if errors.Is(err, core.ErrNotFound) {
		writeJSON(w, http.StatusBadRequest, Envelope{Status: statusError, Message: "Token not found"})
		return nil
	}
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, Envelope{Message: "Logout successful"})
	return nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request, user core.User) error {
	writeSuccess(w, http.StatusOK, Envelope{User: newProfile(user)})
	return nil
}

// handleUpdateProfile serves both PUT and PATCH; either way only supplied
// fields change.
func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request, user core.User) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	verr := core.NewValidationError()
	in := profileInput(p, verr)
	if err := verr.Err(); err != nil {
		return err
	}

	updated, err := s.svc.Identity.UpdateProfile(r.Context(), user.ID, in)
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, Envelope{
		Message: "Profile updated successfully",
		User:    newProfile(updated),
	})
	return nil
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request, user core.User) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	token, err := s.svc.Identity.ChangePassword(r.Context(), user.ID, p.text("old_password"), p.text("new_password"))
	if err != nil {
		return err
	}
	writeSuccess(w, http.StatusOK, Envelope{
		Message: "Password changed successfully",
		Token:   token,
	})
	return nil
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, user core.User) error {
	writeSuccess(w, http.StatusOK, Envelope{User: newProfile(user)})
	return nil
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request, user core.User) error {
	qr := queryReader{q: r.URL.Query(), verr: core.NewValidationError()}
	limit := 50
	if n := qr.integer("limit"); n != nil {
		limit = *n
	}
	if err := qr.verr.Err(); err != nil {
		return err
	}

	entries, err := s.svc.Activity.Recent(r.Context(), user.ID, limit)
	if err != nil {
		return err
	}
	results := make([]activityResponse, 0, len(entries))
	for _, e := range entries {
		results = append(results, newActivity(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"count": len(results), "results": results})
	return nil
}
