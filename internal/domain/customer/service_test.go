package customer

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryRepo struct {
	byEmail map[string]*Customer
	byID    map[string]*Customer
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		byEmail: make(map[string]*Customer),
		byID:    make(map[string]*Customer),
	}
}

func (r *memoryRepo) FindByEmail(_ context.Context, email string) (*Customer, error) {
	if c, ok := r.byEmail[email]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) GetByID(_ context.Context, id string) (*Customer, error) {
	if c, ok := r.byID[id]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

func (r *memoryRepo) Create(_ context.Context, c *Customer) error {
	if _, ok := r.byEmail[c.Email]; ok {
		return ErrEmailTaken
	}
	r.byEmail[c.Email] = c
	r.byID[c.ID] = c
	return nil
}

func (r *memoryRepo) UpdateContact(_ context.Context, id string, upd ContactUpdate) error {
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.FirstName = upd.FirstName
	c.LastName = upd.LastName
	c.Phone = upd.Phone
	if upd.DefaultAddress != nil {
		c.DefaultAddress = upd.DefaultAddress
	}
	return nil
}

func (r *memoryRepo) ApplyOrderStats(_ context.Context, id string, total decimal.Decimal, points int64, at time.Time) error {
	c, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	c.TotalOrders++
	c.TotalSpent = c.TotalSpent.Add(total)
	c.LoyaltyPoints += points
	c.LastOrderAt = &at
	return nil
}

type staticTokens struct{}

func (staticTokens) Issue(customerID, _ string) (string, error) {
	return "token-for-" + customerID, nil
}

func TestRegister(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticTokens{})

	c, token, err := svc.Register(context.Background(), RegisterRequest{
		Email:     "  New.User@Example.COM ",
		Password:  "hunter2secret",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Phone:     "+1 555 010 0001",
	})
	require.NoError(t, err)

	assert.Equal(t, "new.user@example.com", c.Email, "email should be normalized")
	assert.NotEmpty(t, c.ID)
	assert.True(t, c.Active)
	assert.Zero(t, c.TotalOrders)
	assert.True(t, c.TotalSpent.IsZero())
	assert.Equal(t, "token-for-"+c.ID, token, "registration auto-logs-in")
	assert.True(t, c.CheckPassword("hunter2secret"))
	assert.False(t, c.CheckPassword("wrong"))
}

func TestRegister_ShortPassword(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticTokens{})

	_, _, err := svc.Register(context.Background(), RegisterRequest{
		Email:    "short@example.com",
		Password: "abc",
	})
	assert.ErrorIs(t, err, ErrPasswordTooShort)
}

func TestRegister_EmailTaken(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticTokens{})
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterRequest{Email: "dup@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	// Same account, different casing.
	_, _, err = svc.Register(ctx, RegisterRequest{Email: "DUP@example.com", Password: "hunter2secret"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestLogin(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticTokens{})
	ctx := context.Background()

	created, _, err := svc.Register(ctx, RegisterRequest{
		Email:    "login@example.com",
		Password: "hunter2secret",
	})
	require.NoError(t, err)

	c, token, err := svc.Login(ctx, "Login@Example.com", "hunter2secret")
	require.NoError(t, err)
	assert.Equal(t, created.ID, c.ID)
	assert.Equal(t, "token-for-"+created.ID, token)
}

func TestLogin_RejectionsAreUniform(t *testing.T) {
	svc := NewService(newMemoryRepo(), staticTokens{})
	ctx := context.Background()

	_, _, err := svc.Register(ctx, RegisterRequest{Email: "known@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	_, _, badPassword := svc.Login(ctx, "known@example.com", "wrong")
	_, _, unknownAccount := svc.Login(ctx, "ghost@example.com", "whatever")

	assert.ErrorIs(t, badPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownAccount, ErrInvalidCredentials)
}

func TestLogin_DisabledAccount(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, staticTokens{})
	ctx := context.Background()

	c, _, err := svc.Register(ctx, RegisterRequest{Email: "gone@example.com", Password: "hunter2secret"})
	require.NoError(t, err)

	repo.byID[c.ID].Active = false

	_, _, err = svc.Login(ctx, "gone@example.com", "hunter2secret")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLoyaltyPointsFor(t *testing.T) {
	assert.Equal(t, int64(29), LoyaltyPointsFor(decimal.RequireFromString("29.80")))
	assert.Equal(t, int64(0), LoyaltyPointsFor(decimal.RequireFromString("0.99")))
	assert.Equal(t, int64(15), LoyaltyPointsFor(decimal.RequireFromString("15.00")))
}
