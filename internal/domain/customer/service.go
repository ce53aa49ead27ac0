package customer

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MinPasswordLength is the minimum accepted password length for new accounts.
const MinPasswordLength = 6

// ErrPasswordTooShort is returned when a registration password is below
// MinPasswordLength.
var ErrPasswordTooShort = errors.New("password must be at least 6 characters")

// TokenIssuer mints a session credential for an authenticated customer.
type TokenIssuer interface {
	Issue(customerID, email string) (string, error)
}

// Service handles registration and credential checks for customer accounts.
type Service struct {
	repo   Repository
	tokens TokenIssuer
	now    func() time.Time
}

// NewService creates a customer Service.
func NewService(repo Repository, tokens TokenIssuer) *Service {
	return &Service{repo: repo, tokens: tokens, now: time.Now}
}

// RegisterRequest holds the input for creating a customer account directly
// (outside of checkout).
type RegisterRequest struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	Address   *Address
}

// Register creates a new active customer with zeroed aggregates and returns
// the account together with a fresh session token (auto-login).
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Customer, string, error) {
	if len(req.Password) < MinPasswordLength {
		return nil, "", ErrPasswordTooShort
	}

	email := NormalizeEmail(req.Email)
	if _, err := s.repo.FindByEmail(ctx, email); err == nil {
		return nil, "", ErrEmailTaken
	} else if !errors.Is(err, ErrNotFound) {
		return nil, "", errors.Wrap(err, "lookup customer")
	}

	hash, err := HashPassword(req.Password)
	if err != nil {
		return nil, "", err
	}

	c := &Customer{
		ID:             uuid.New().String(),
		Email:          email,
		PasswordHash:   hash,
		FirstName:      req.FirstName,
		LastName:       req.LastName,
		Phone:          req.Phone,
		DefaultAddress: req.Address,
		TotalSpent:     decimal.Zero,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return nil, "", errors.Wrap(err, "create customer")
	}

	token, err := s.tokens.Issue(c.ID, c.Email)
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	return c, token, nil
}

// Login verifies the credentials and returns the customer with a session
// token. Lookup misses and bad passwords both yield ErrInvalidCredentials so
// the response does not reveal which accounts exist.
func (s *Service) Login(ctx context.Context, email, password string) (*Customer, string, error) {
	c, err := s.repo.FindByEmail(ctx, NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, "", ErrInvalidCredentials
		}
		return nil, "", errors.Wrap(err, "lookup customer")
	}

	if !c.Active || !c.CheckPassword(password) {
		return nil, "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(c.ID, c.Email)
	if err != nil {
		return nil, "", errors.Wrap(err, "issue token")
	}
	return c, token, nil
}
