package testhelpers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/pageza/foodgram/backend/internal/types"
)

// MockAuthService is a mock implementation of service.IAuthService
type MockAuthService struct {
	mock.Mock
}

func (m *MockAuthService) Login(ctx context.Context, req types.LoginRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockAuthService) ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error) {
	args := m.Called(ctx, token)
	claims, _ := args.Get(0).(*types.TokenClaims)
	return claims, args.Error(1)
}

func (m *MockAuthService) Logout(ctx context.Context, claims *types.TokenClaims) error {
	args := m.Called(ctx, claims)
	return args.Error(0)
}

// MockShoppingListService is a mock implementation of service.IShoppingListService
type MockShoppingListService struct {
	mock.Mock
}

func (m *MockShoppingListService) Aggregate(ctx context.Context, userID uint) ([]types.ShoppingListItem, error) {
	args := m.Called(ctx, userID)
	items, _ := args.Get(0).([]types.ShoppingListItem)
	return items, args.Error(1)
}

func (m *MockShoppingListService) Download(ctx context.Context, userID uint) (string, error) {
	args := m.Called(ctx, userID)
	return args.String(0), args.Error(1)
}
