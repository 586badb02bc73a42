package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"onboard/internal/domain"
	"onboard/pkg/errors"
)

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context, limit, offset int) ([]*domain.User, error) {
	args := m.Called(ctx, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.User), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockUserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, user *domain.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

type MockBlacklist struct {
	mock.Mock
}

func (m *MockBlacklist) Blacklist(ctx context.Context, token string, expiration time.Duration) error {
	args := m.Called(ctx, token, expiration)
	return args.Error(0)
}

const testSecret = "test-secret-for-signing"

func TestRegister_CreatesUserAndToken(t *testing.T) {
	repo := new(MockUserRepository)
	service := NewService(repo, testSecret, time.Hour)

	repo.On("ExistsByEmail", mock.Anything, "jane@example.com").Return(false, nil)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*domain.User")).Return(nil)

	resp, err := service.Register(context.Background(), &RegisterRequest{
		Email:    "jane@example.com",
		Password: "correct-horse",
		FullName: "Jane Smith",
		Role:     domain.StaffRoleCompliance,
	})
	require.NoError(t, err)

	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "jane@example.com", resp.User.Email)
	assert.True(t, resp.User.IsActive)

	// Password must be stored hashed, never verbatim
	assert.NotEqual(t, "correct-horse", resp.User.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(resp.User.PasswordHash), []byte("correct-horse")))

	repo.AssertExpectations(t)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	repo := new(MockUserRepository)
	service := NewService(repo, testSecret, time.Hour)

	repo.On("ExistsByEmail", mock.Anything, "jane@example.com").Return(true, nil)

	_, err := service.Register(context.Background(), &RegisterRequest{
		Email:    "jane@example.com",
		Password: "correct-horse",
		FullName: "Jane Smith",
		Role:     domain.StaffRoleBD,
	})
	assert.ErrorIs(t, err, errors.ErrUserAlreadyExists)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func activeUser(t *testing.T, password string) *domain.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return &domain.User{
		ID:           uuid.New(),
		Email:        "mlro@example.com",
		PasswordHash: string(hash),
		FullName:     "Max Reviewer",
		Role:         domain.StaffRoleMLRO,
		IsActive:     true,
		CreatedAt:    time.Now(),
	}
}

func TestLogin_Success(t *testing.T) {
	repo := new(MockUserRepository)
	service := NewService(repo, testSecret, time.Hour)
	user := activeUser(t, "s3cure-pass")

	repo.On("FindByEmail", mock.Anything, "mlro@example.com").Return(user, nil)
	repo.On("Update", mock.Anything, user).Return(nil)

	resp, err := service.Login(context.Background(), &LoginRequest{
		Email:    "mlro@example.com",
		Password: "s3cure-pass",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	require.NotNil(t, user.LastLogin)

	// Issued token carries the staff identity claims
	token, err := jwt.Parse(resp.AccessToken, func(token *jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	claims := token.Claims.(jwt.MapClaims)
	assert.Equal(t, user.ID.String(), claims["user_id"])
	assert.Equal(t, "mlro", claims["role"])
}

func TestLogin_WrongPassword(t *testing.T) {
	repo := new(MockUserRepository)
	service := NewService(repo, testSecret, time.Hour)
	user := activeUser(t, "s3cure-pass")

	repo.On("FindByEmail", mock.Anything, "mlro@example.com").Return(user, nil)

	_, err := service.Login(context.Background(), &LoginRequest{
		Email:    "mlro@example.com",
		Password: "wrong",
	})
	assert.ErrorIs(t, err, errors.ErrInvalidCredentials)
}

func TestLogin_InactiveAccount(t *testing.T) {
	repo := new(MockUserRepository)
	service := NewService(repo, testSecret, time.Hour)
	user := activeUser(t, "s3cure-pass")
	user.IsActive = false

	repo.On("FindByEmail", mock.Anything, "mlro@example.com").Return(user, nil)

	_, err := service.Login(context.Background(), &LoginRequest{
		Email:    "mlro@example.com",
		Password: "s3cure-pass",
	})
	assert.ErrorIs(t, err, errors.ErrUserInactive)
}

func TestLogout_RevokesForRemainingLifetime(t *testing.T) {
	repo := new(MockUserRepository)
	blacklist := new(MockBlacklist)
	service := NewService(repo, testSecret, time.Hour).WithBlacklist(blacklist)
	user := activeUser(t, "s3cure-pass")

	repo.On("FindByEmail", mock.Anything, "mlro@example.com").Return(user, nil)
	repo.On("Update", mock.Anything, user).Return(nil)

	resp, err := service.Login(context.Background(), &LoginRequest{
		Email:    "mlro@example.com",
		Password: "s3cure-pass",
	})
	require.NoError(t, err)

	blacklist.On("Blacklist", mock.Anything, resp.AccessToken, mock.AnythingOfType("time.Duration")).Return(nil)

	require.NoError(t, service.Logout(context.Background(), resp.AccessToken))
	blacklist.AssertExpectations(t)
}

func TestLogout_GarbageTokenIgnored(t *testing.T) {
	repo := new(MockUserRepository)
	blacklist := new(MockBlacklist)
	service := NewService(repo, testSecret, time.Hour).WithBlacklist(blacklist)

	require.NoError(t, service.Logout(context.Background(), "not-a-token"))
	blacklist.AssertNotCalled(t, "Blacklist", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetActive(t *testing.T) {
	repo := new(MockUserRepository)
	service := NewService(repo, testSecret, time.Hour)
	user := activeUser(t, "s3cure-pass")

	repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)
	repo.On("Update", mock.Anything, user).Return(nil)

	updated, err := service.SetActive(context.Background(), user.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
}
