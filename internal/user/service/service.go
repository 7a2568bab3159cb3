package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"rescue/internal/platform/metrics"
	"rescue/internal/user/models"
	"rescue/pkg/domain"
	dErrors "rescue/pkg/domain-errors"
	"rescue/pkg/email"
	"rescue/pkg/platform/sentinel"
	"rescue/pkg/requestcontext"
)

type Store interface {
	Create(ctx context.Context, u *models.User) error
	FindByID(ctx context.Context, id domain.UserID) (*models.User, error)
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	Execute(ctx context.Context, id domain.UserID, mutate func(*models.User) error) (*models.User, error)
	Delete(ctx context.Context, id domain.UserID) (*models.User, error)
}

// TokenIssuer signs access tokens for authenticated users.
type TokenIssuer interface {
	GenerateAccessToken(userID domain.UserID) (string, time.Time, error)
}

// Token is the result of a successful login.
type Token struct {
	AccessToken string       `json:"access_token"`
	TokenType   string       `json:"token_type"`
	ExpiresAt   time.Time    `json:"expires_at"`
	User        *models.User `json:"user"`
}

type Service struct {
	store      Store
	tokens     TokenIssuer
	bcryptCost int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type Option func(*Service)

// WithBcryptCost overrides bcrypt.DefaultCost. Out of range values are
// ignored.
func WithBcryptCost(cost int) Option {
	return func(s *Service) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			s.bcryptCost = cost
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func New(store Store, tokens TokenIssuer, opts ...Option) (*Service, error) {
	if store == nil {
		return nil, errors.New("user store is required")
	}
	if tokens == nil {
		return nil, errors.New("token issuer is required")
	}
	s := &Service{
		store:      store,
		tokens:     tokens,
		bcryptCost: bcrypt.DefaultCost,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Register validates reg, hashes the password and stores the user.
func (s *Service) Register(ctx context.Context, reg models.Registration) (*models.User, error) {
	if err := reg.Validate(); err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.bcryptCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	u := &models.User{
		ID:           domain.NewUserID(),
		PasswordHash: hash,
		RegisteredAt: requestcontext.Now(ctx),
	}
	u.Apply(reg.Profile)
	if err := s.store.Create(ctx, u); err != nil {
		return nil, wrapStoreErr(err, "failed to register user")
	}

	if s.metrics != nil {
		s.metrics.IncrementUsersCreated()
	}
	s.logger.InfoContext(ctx, "user registered",
		"user_id", u.ID.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

// Login checks the credentials and issues an access token. Unknown emails
// and wrong passwords fail identically.
func (s *Service) Login(ctx context.Context, addr, password string) (*Token, error) {
	invalid := dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")

	u, err := s.store.FindByEmail(ctx, email.Normalize(addr))
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, invalid
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load user")
	}
	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "login failed",
			"user_id", u.ID.String(),
			"request_id", requestcontext.RequestID(ctx),
		)
		return nil, invalid
	}
	return s.IssueToken(ctx, u)
}

// IssueToken signs a token for u without checking credentials. Used by the
// login flow and the token CLI command.
func (s *Service) IssueToken(ctx context.Context, u *models.User) (*Token, error) {
	token, expiresAt, err := s.tokens.GenerateAccessToken(u.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &Token{AccessToken: token, TokenType: "Bearer", ExpiresAt: expiresAt, User: u}, nil
}

func (s *Service) Get(ctx context.Context, id domain.UserID) (*models.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load user")
	}
	return u, nil
}

// Lookup returns (nil, nil) for unknown ids.
func (s *Service) Lookup(ctx context.Context, id domain.UserID) (*models.User, error) {
	u, err := s.store.FindByID(ctx, id)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapStoreErr(err, "failed to load user")
	}
	return u, nil
}

func (s *Service) List(ctx context.Context) ([]*models.User, error) {
	all, err := s.store.List(ctx)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to list users")
	}
	return all, nil
}

// Update changes the profile of id. Only the user themself may do so.
func (s *Service) Update(ctx context.Context, id domain.UserID, p models.Profile) (*models.User, error) {
	if err := requireSelf(ctx, id); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	u, err := s.store.Execute(ctx, id, func(u *models.User) error {
		u.Apply(p)
		return nil
	})
	if err != nil {
		return nil, wrapStoreErr(err, "failed to update user")
	}
	return u, nil
}

// Delete removes id. Only the user themself may do so; interventions they
// reported are kept.
func (s *Service) Delete(ctx context.Context, id domain.UserID) (*models.User, error) {
	if err := requireSelf(ctx, id); err != nil {
		return nil, err
	}
	u, err := s.store.Delete(ctx, id)
	if err != nil {
		return nil, wrapStoreErr(err, "failed to delete user")
	}
	s.logger.InfoContext(ctx, "user deleted",
		"user_id", id.String(),
		"request_id", requestcontext.RequestID(ctx),
	)
	return u, nil
}

func requireSelf(ctx context.Context, id domain.UserID) error {
	if requestcontext.UserID(ctx) != id {
		return dErrors.New(dErrors.CodeForbidden, "users may only change their own account")
	}
	return nil
}

func wrapStoreErr(err error, msg string) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "user not found")
	case errors.Is(err, sentinel.ErrAlreadyUsed):
		return dErrors.New(dErrors.CodeConflict, "email is already registered")
	}
	if _, ok := dErrors.From(err); ok {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, msg)
}
