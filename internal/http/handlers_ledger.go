package http

import (
	"net/http"

	"fintrack/internal/core"
)

// Categories

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request, user core.User) error {
	f, err := categoryFilter(r.URL.Query())
	if err != nil {
		return err
	}
	if f.Page, err = pageParams(r.URL.Query(), s.pageSize, s.maxPageSize); err != nil {
		return err
	}
	page, err := s.svc.Categories.List(r.Context(), user.ID, f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newPage(r, page, func(c core.Category) categoryResponse {
		return newCategory(c, user)
	}))
	return nil
}

func (s *Server) handleGetCategory(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	c, err := s.svc.Categories.Get(r.Context(), user.ID, id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newCategory(c, user))
	return nil
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request, user core.User) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	verr := core.NewValidationError()
	name := p.str("name", verr)
	if name == nil && !verr.Has("name") {
		verr.Add("name", core.MsgRequired)
	}
	if err := verr.Err(); err != nil {
		return err
	}

	c, err := s.svc.Categories.Create(r.Context(), user.ID, *name)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newCategory(c, user))
	return nil
}

func (s *Server) updateCategory(full bool) authedFunc {
	return func(w http.ResponseWriter, r *http.Request, user core.User) error {
		id, err := pathID(r)
		if err != nil {
			return err
		}
		p, err := decodePayload(w, r)
		if err != nil {
			return err
		}
		verr := core.NewValidationError()
		name := p.str("name", verr)
		if err := verr.Err(); err != nil {
			// A row the caller cannot see is reported before its payload.
			if _, getErr := s.svc.Categories.Get(r.Context(), user.ID, id); getErr != nil {
				return getErr
			}
			return err
		}

		c, err := s.svc.Categories.Update(r.Context(), user.ID, id, name, full)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, newCategory(c, user))
		return nil
	}
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Categories.Delete(r.Context(), user.ID, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Transactions

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request, user core.User) error {
	f, err := transactionFilter(r.URL.Query())
	if err != nil {
		return err
	}
	if f.Page, err = pageParams(r.URL.Query(), s.pageSize, s.maxPageSize); err != nil {
		return err
	}
	page, err := s.svc.Transactions.List(r.Context(), user.ID, f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newPage(r, page, func(t core.Transaction) transactionResponse {
		return newTransaction(t, user)
	}))
	return nil
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	t, err := s.svc.Transactions.Get(r.Context(), user.ID, id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newTransaction(t, user))
	return nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request, user core.User) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	verr := core.NewValidationError()
	in := transactionInput(p, verr)
	if err := verr.Err(); err != nil {
		return err
	}

	t, err := s.svc.Transactions.Create(r.Context(), user.ID, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newTransaction(t, user))
	return nil
}

func (s *Server) updateTransaction(full bool) authedFunc {
	return func(w http.ResponseWriter, r *http.Request, user core.User) error {
		id, err := pathID(r)
		if err != nil {
			return err
		}
		p, err := decodePayload(w, r)
		if err != nil {
			return err
		}
		verr := core.NewValidationError()
		in := transactionInput(p, verr)
		if err := verr.Err(); err != nil {
			// A row the caller cannot see is reported before its payload.
			if _, getErr := s.svc.Transactions.Get(r.Context(), user.ID, id); getErr != nil {
				return getErr
			}
			return err
		}

		t, err := s.svc.Transactions.Update(r.Context(), user.ID, id, in, full)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, newTransaction(t, user))
		return nil
	}
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Transactions.Delete(r.Context(), user.ID, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// Budgets

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request, user core.User) error {
	f, err := budgetFilter(r.URL.Query())
	if err != nil {
		return err
	}
	if f.Page, err = pageParams(r.URL.Query(), s.pageSize, s.maxPageSize); err != nil {
		return err
	}
	page, err := s.svc.Budgets.List(r.Context(), user.ID, f)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newPage(r, page, func(b core.Budget) budgetResponse {
		return newBudget(b, user)
	}))
	return nil
}

func (s *Server) handleGetBudget(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	b, err := s.svc.Budgets.Get(r.Context(), user.ID, id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newBudget(b, user))
	return nil
}

func (s *Server) handleCreateBudget(w http.ResponseWriter, r *http.Request, user core.User) error {
	p, err := decodePayload(w, r)
	if err != nil {
		return err
	}
	verr := core.NewValidationError()
	in := budgetInput(p, verr)
	if err := verr.Err(); err != nil {
		return err
	}

	b, err := s.svc.Budgets.Create(r.Context(), user.ID, in)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, newBudget(b, user))
	return nil
}

func (s *Server) updateBudget(full bool) authedFunc {
	return func(w http.ResponseWriter, r *http.Request, user core.User) error {
		id, err := pathID(r)
		if err != nil {
			return err
		}
		p, err := decodePayload(w, r)
		if err != nil {
			return err
		}
		verr := core.NewValidationError()
		in := budgetInput(p, verr)
		if err := verr.Err(); err != nil {
			// A row the caller cannot see is reported before its payload.
			if _, getErr := s.svc.Budgets.Get(r.Context(), user.ID, id); getErr != nil {
				return getErr
			}
			return err
		}

		b, err := s.svc.Budgets.Update(r.Context(), user.ID, id, in, full)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, newBudget(b, user))
		return nil
	}
}

func (s *Server) handleDeleteBudget(w http.ResponseWriter, r *http.Request, user core.User) error {
	id, err := pathID(r)
	if err != nil {
		return err
	}
	if err := s.svc.Budgets.Delete(r.Context(), user.ID, id); err != nil {
		return err
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}
