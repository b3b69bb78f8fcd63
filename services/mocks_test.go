package services_test

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"

	"github.com/glowmart/storefront-bff/domain"
	"github.com/glowmart/storefront-bff/internal/shopify"
	"github.com/glowmart/storefront-bff/log"
)

func nopLogger() log.Logger {
	return log.NewZerologAdapter(zerolog.Disabled, false)
}

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) CreateUser(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) GetUserByID(ctx context.Context, id string) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetUserByEmailAndProvider(ctx context.Context, email string, provider domain.Provider) (*domain.User, error) {
	args := m.Called(ctx, email, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) GetTokenInfo(ctx context.Context, userID string) (domain.CustomerToken, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.CustomerToken), args.Error(1)
}

func (m *MockUserRepository) GetCredentials(ctx context.Context, userID string) (domain.Credentials, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(domain.Credentials), args.Error(1)
}

func (m *MockUserRepository) WriteToken(ctx context.Context, userID string, token domain.CustomerToken) error {
	args := m.Called(ctx, userID, token)
	return args.Error(0)
}

type MockCommerceAPI struct {
	mock.Mock
}

func (m *MockCommerceAPI) CreateCustomer(ctx context.Context, email, password, firstName, lastName string) (*shopify.ProvisionedCustomer, error) {
	args := m.Called(ctx, email, password, firstName, lastName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*shopify.ProvisionedCustomer), args.Error(1)
}

func (m *MockCommerceAPI) CreateAccessToken(ctx context.Context, email, password string) (domain.CustomerToken, error) {
	args := m.Called(ctx, email, password)
	return args.Get(0).(domain.CustomerToken), args.Error(1)
}

func (m *MockCommerceAPI) RenewAccessToken(ctx context.Context, accessToken string) (domain.CustomerToken, error) {
	args := m.Called(ctx, accessToken)
	return args.Get(0).(domain.CustomerToken), args.Error(1)
}

type MockPasswordHasher struct {
	mock.Mock
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(hashedPassword, password string) error {
	args := m.Called(hashedPassword, password)
	return args.Error(0)
}
