//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"rescue/internal/user/models"
	"rescue/internal/user/store"
	"rescue/pkg/domain"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "users")
	s.Require().NoError(err)
}

func newUser(email string) *models.User {
	return &models.User{
		ID:           domain.NewUserID(),
		FirstName:    "Jane",
		LastName:     "Doe",
		Email:        email,
		PasswordHash: []byte("$2a$04$hash"),
		RegisteredAt: time.Now().UTC().Truncate(time.Microsecond),
	}
}

func (s *PostgresStoreSuite) TestRoundTrip() {
	ctx := context.Background()
	u := newUser("jane@example.com")
	s.Require().NoError(s.store.Create(ctx, u))

	found, err := s.store.FindByEmail(ctx, "JANE@example.com")
	s.Require().NoError(err)
	s.Equal(u.ID, found.ID)
	s.Equal(u.PasswordHash, found.PasswordHash)
	s.True(u.RegisteredAt.Equal(found.RegisteredAt))
}

// TestConcurrentDuplicateEmail verifies that concurrent registrations with
// the same email result in exactly one success.
func (s *PostgresStoreSuite) TestConcurrentDuplicateEmail() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount, conflictCount atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.Create(ctx, newUser("same@example.com"))
			switch {
			case err == nil:
				successCount.Add(1)
			case errors.Is(err, sentinel.ErrAlreadyUsed):
				conflictCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successCount.Load())
	s.Equal(int32(goroutines-1), conflictCount.Load())
}

func (s *PostgresStoreSuite) TestExecuteAndDelete() {
	ctx := context.Background()
	u := newUser("jane@example.com")
	s.Require().NoError(s.store.Create(ctx, u))
	s.Require().NoError(s.store.Create(ctx, newUser("john@example.com")))

	_, err := s.store.Execute(ctx, u.ID, func(u *models.User) error {
		u.Email = "John@example.com"
		return nil
	})
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)

	updated, err := s.store.Execute(ctx, u.ID, func(u *models.User) error {
		u.LastName = "Smith"
		return nil
	})
	s.Require().NoError(err)
	s.Equal("Smith", updated.LastName)

	_, err = s.store.Delete(ctx, u.ID)
	s.Require().NoError(err)
	_, err = s.store.FindByID(ctx, u.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
