package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"fintrack/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type RepositoryTestSuite struct {
	suite.Suite
	repo  *SQLiteRepository
	q     *Queries
	ctx   context.Context
	alice core.User
	bob   core.User
}

func (s *RepositoryTestSuite) SetupTest() {
	repo, err := NewSQLiteRepository(":memory:")
	require.NoError(s.T(), err, "failed to create test database")
	s.repo = repo
	s.q = repo.Queries()
	s.ctx = context.Background()
	s.alice = s.mustUser("alice", "alice@example.com")
	s.bob = s.mustUser("bob", "bob@example.com")
}

func (s *RepositoryTestSuite) TearDownTest() {
	if s.repo != nil {
		s.repo.Close()
	}
}

func (s *RepositoryTestSuite) mustUser(username, email string) core.User {
	u, err := s.q.CreateUser(s.ctx, core.User{Username: username, Email: email, PasswordHash: "x", IsActive: true})
	require.NoError(s.T(), err)
	return u
}

func (s *RepositoryTestSuite) mustCategory(userID int64, name string) core.Category {
	c, err := s.q.CreateCategory(s.ctx, userID, name)
	require.NoError(s.T(), err)
	return c
}

func (s *RepositoryTestSuite) mustTransaction(userID int64, categoryID *int64, cents int64, desc, date string) core.Transaction {
	d, err := core.ParseDate(date)
	require.NoError(s.T(), err)
	t, err := s.q.CreateTransaction(s.ctx, core.Transaction{
		UserID: userID, CategoryID: categoryID, Amount: core.Money{Cents: cents},
		Description: desc, Date: d, Type: core.TransactionExpense,
	})
	require.NoError(s.T(), err)
	return t
}

func (s *RepositoryTestSuite) TestUserLookups() {
	u, err := s.q.GetUserByEmail(s.ctx, "ALICE@example.com")
	s.Require().NoError(err)
	s.Equal(s.alice.ID, u.ID)
	s.True(u.IsActive)
	s.WithinDuration(time.Now(), u.DateJoined, time.Minute)

	_, err = s.q.GetUserByUsername(s.ctx, "carol")
	s.ErrorIs(err, core.ErrNotFound)

	taken, err := s.q.EmailTaken(s.ctx, "Bob@Example.com", s.alice.ID)
	s.Require().NoError(err)
	s.True(taken)
	taken, err = s.q.EmailTaken(s.ctx, "bob@example.com", s.bob.ID)
	s.Require().NoError(err)
	s.False(taken)
}

func (s *RepositoryTestSuite) TestDuplicateUsernameIsConstraintError() {
	_, err := s.q.CreateUser(s.ctx, core.User{Username: "alice", Email: "other@example.com", PasswordHash: "x"})
	s.Require().ErrorIs(err, core.ErrConflict)

	var ce *ConstraintError
	s.Require().True(errors.As(err, &ce))
	s.True(ce.Touches("username"))
}

func (s *RepositoryTestSuite) TestTokenLifecycle() {
	key, err := s.q.EnsureToken(s.ctx, s.alice.ID, "first")
	s.Require().NoError(err)
	s.Equal("first", key)

	key, err = s.q.EnsureToken(s.ctx, s.alice.ID, "second")
	s.Require().NoError(err)
	s.Equal("first", key, "existing token is kept")

	s.Require().NoError(s.q.ReplaceToken(s.ctx, s.alice.ID, "rotated"))
	_, err = s.q.UserByToken(s.ctx, "first")
	s.ErrorIs(err, core.ErrNotFound)
	u, err := s.q.UserByToken(s.ctx, "rotated")
	s.Require().NoError(err)
	s.Equal("alice", u.Username)

	missing, err := s.q.ListUsersWithoutToken(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(missing, 1)
	s.Equal("bob", missing[0].Username)

	s.Require().NoError(s.q.DeleteToken(s.ctx, s.alice.ID))
	s.ErrorIs(s.q.DeleteToken(s.ctx, s.alice.ID), core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestCategoryUniquenessIsPerUser() {
	s.mustCategory(s.alice.ID, "Groceries")
	s.mustCategory(s.bob.ID, "Groceries")

	_, err := s.q.CreateCategory(s.ctx, s.alice.ID, "Groceries")
	s.ErrorIs(err, core.ErrConflict)

	taken, err := s.q.CategoryNameTaken(s.ctx, s.alice.ID, "Groceries", 0)
	s.Require().NoError(err)
	s.True(taken)
}

func (s *RepositoryTestSuite) TestCategoryOwnership() {
	c := s.mustCategory(s.alice.ID, "Rent")

	_, err := s.q.GetCategory(s.ctx, s.bob.ID, c.ID)
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.q.RenameCategory(s.ctx, s.bob.ID, c.ID, "Mine"), core.ErrNotFound)
	s.ErrorIs(s.q.DeleteCategory(s.ctx, s.bob.ID, c.ID), core.ErrNotFound)

	got, err := s.q.GetCategory(s.ctx, s.alice.ID, c.ID)
	s.Require().NoError(err)
	s.Equal("Rent", got.Name)
}

func (s *RepositoryTestSuite) TestDeleteCategoryCascades() {
	c := s.mustCategory(s.alice.ID, "Food")
	tx := s.mustTransaction(s.alice.ID, &c.ID, 1000, "Lunch", "2024-05-01")
	b, err := s.q.CreateBudget(s.ctx, core.Budget{UserID: s.alice.ID, CategoryID: c.ID, Amount: core.Money{Cents: 5000}, Month: 5, Year: 2024})
	s.Require().NoError(err)
	s.Equal("Food", b.Category.Name)

	s.Require().NoError(s.q.DeleteCategory(s.ctx, s.alice.ID, c.ID))

	got, err := s.q.GetTransaction(s.ctx, s.alice.ID, tx.ID)
	s.Require().NoError(err)
	s.Nil(got.CategoryID)
	s.Nil(got.Category)

	_, err = s.q.GetBudget(s.ctx, s.alice.ID, b.ID)
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *RepositoryTestSuite) TestListTransactionsFilters() {
	food := s.mustCategory(s.alice.ID, "Food")
	s.mustTransaction(s.alice.ID, &food.ID, 4550, "Weekly shop", "2024-05-01")
	s.mustTransaction(s.alice.ID, &food.ID, 1200, "Bakery 100%", "2024-05-10")
	s.mustTransaction(s.alice.ID, nil, 90000, "Rent May", "2024-05-03")
	s.mustTransaction(s.bob.ID, nil, 100, "Not alice", "2024-05-03")

	all, err := s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{Page: core.PageRequest{Number: 1, Size: 10}})
	s.Require().NoError(err)
	s.Equal(3, all.Count)
	s.Equal("Bakery 100%", all.Items[0].Description, "newest date first")

	minAmount := core.Money{Cents: 2000}
	filtered, err := s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{
		CategoryID: &food.ID,
		MinAmount:  &minAmount,
		Page:       core.PageRequest{Number: 1, Size: 10},
	})
	s.Require().NoError(err)
	s.Require().Len(filtered.Items, 1)
	s.Equal("Weekly shop", filtered.Items[0].Description)
	s.Equal(&core.CategoryRef{ID: food.ID, Name: "Food"}, filtered.Items[0].Category)

	start, end := core.NewDate(2024, 5, 2), core.NewDate(2024, 5, 5)
	ranged, err := s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{
		StartDate: &start, EndDate: &end, Page: core.PageRequest{Number: 1, Size: 10},
	})
	s.Require().NoError(err)
	s.Require().Len(ranged.Items, 1)
	s.Equal("Rent May", ranged.Items[0].Description)

	search, err := s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{Search: "food", Page: core.PageRequest{Number: 1, Size: 10}})
	s.Require().NoError(err)
	s.Equal(2, search.Count, "search matches category name")

	literal, err := s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{Search: "0%", Page: core.PageRequest{Number: 1, Size: 10}})
	s.Require().NoError(err)
	s.Equal(1, literal.Count, "wildcards are escaped")

	byAmount, err := s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{
		Ordering: core.Ordering{{Key: "amount"}},
		Page:     core.PageRequest{Number: 2, Size: 2},
	})
	s.Require().NoError(err)
	s.Equal(3, byAmount.Count)
	s.Require().Len(byAmount.Items, 1)
	s.Equal(int64(90000), byAmount.Items[0].Amount.Cents)

	_, err = s.q.ListTransactions(s.ctx, s.alice.ID, core.TransactionFilter{Page: core.PageRequest{Number: 5, Size: 10}})
	s.ErrorIs(err, core.ErrInvalidPage)
}

func (s *RepositoryTestSuite) TestBudgetUniqueness() {
	c := s.mustCategory(s.alice.ID, "Groceries")
	b, err := s.q.CreateBudget(s.ctx, core.Budget{UserID: s.alice.ID, CategoryID: c.ID, Amount: core.Money{Cents: 30000}, Month: 3, Year: 2025})
	s.Require().NoError(err)

	_, err = s.q.CreateBudget(s.ctx, core.Budget{UserID: s.alice.ID, CategoryID: c.ID, Amount: core.Money{Cents: 100}, Month: 3, Year: 2025})
	s.ErrorIs(err, core.ErrConflict)

	exists, err := s.q.BudgetExists(s.ctx, s.alice.ID, c.ID, 3, 2025, b.ID)
	s.Require().NoError(err)
	s.False(exists, "self is excluded")

	b.Amount = core.Money{Cents: 35000}
	updated, err := s.q.UpdateBudget(s.ctx, b)
	s.Require().NoError(err)
	s.Equal(int64(35000), updated.Amount.Cents)
}

func (s *RepositoryTestSuite) TestListBudgetsDefaultOrder() {
	a := s.mustCategory(s.alice.ID, "Alpha")
	z := s.mustCategory(s.alice.ID, "Zulu")
	for _, b := range []core.Budget{
		{CategoryID: z.ID, Month: 5, Year: 2024},
		{CategoryID: a.ID, Month: 5, Year: 2024},
		{CategoryID: a.ID, Month: 6, Year: 2024},
		{CategoryID: a.ID, Month: 1, Year: 2023},
	} {
		b.UserID = s.alice.ID
		b.Amount = core.Money{Cents: 100}
		_, err := s.q.CreateBudget(s.ctx, b)
		s.Require().NoError(err)
	}

	page, err := s.q.ListBudgets(s.ctx, s.alice.ID, core.BudgetFilter{Page: core.PageRequest{Number: 1, Size: 10}})
	s.Require().NoError(err)
	s.Require().Len(page.Items, 4)
	got := make([]string, 0, 4)
	for _, b := range page.Items {
		got = append(got, b.Category.Name+"-"+core.MonthName(b.Month))
	}
	s.Equal([]string{"Alpha-June", "Alpha-May", "Zulu-May", "Alpha-January"}, got)

	month, year := 5, 2024
	filtered, err := s.q.ListBudgets(s.ctx, s.alice.ID, core.BudgetFilter{Month: &month, Year: &year, Search: "zu", Page: core.PageRequest{Number: 1, Size: 10}})
	s.Require().NoError(err)
	s.Require().Len(filtered.Items, 1)
	s.Equal(z.ID, filtered.Items[0].CategoryID)
}

func (s *RepositoryTestSuite) TestRecordActivityIgnoresRedelivery() {
	e := core.ActivityEntry{UserID: s.alice.ID, Entity: "budget", EntityID: 7, Action: "created", OccurredAt: time.Now()}
	written, err := s.q.RecordActivity(s.ctx, e)
	s.Require().NoError(err)
	s.True(written)

	written, err = s.q.RecordActivity(s.ctx, e)
	s.Require().NoError(err)
	s.False(written)

	entries, err := s.q.ListActivity(s.ctx, s.alice.ID, 10)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("budget", entries[0].Entity)
}

func (s *RepositoryTestSuite) TestInTxRollsBack() {
	err := s.repo.InTx(s.ctx, func(q *Queries) error {
		if _, err := q.CreateCategory(s.ctx, s.alice.ID, "Temp"); err != nil {
			return err
		}
		return errors.New("abort")
	})
	s.Require().EqualError(err, "abort")

	taken, err := s.q.CategoryNameTaken(s.ctx, s.alice.ID, "Temp", 0)
	s.Require().NoError(err)
	s.False(taken)
}

func TestRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RepositoryTestSuite))
}

func TestNewSQLiteRepositoryOnDisk(t *testing.T) {
	path := t.TempDir() + "/nested/fintrack.db"
	repo, err := NewSQLiteRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Ping(context.Background()))
	require.NoError(t, repo.Close())

	// Reopening applies no migrations twice.
	repo, err = NewSQLiteRepository(path)
	require.NoError(t, err)
	assert.NoError(t, repo.Close())
}
