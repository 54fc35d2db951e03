package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"

	"github.com/installmarket/installmarket-backend/internal/models"
	"github.com/installmarket/installmarket-backend/internal/pkg/apperror"
	"github.com/installmarket/installmarket-backend/internal/repository"
)

type mockAuthRepo struct {
	mock.Mock
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *mockAuthRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *mockAuthRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func newAuthFixture() (*mockAuthRepo, *AuthService) {
	repo := new(mockAuthRepo)
	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	return repo, NewAuthService(repo, tm)
}

func TestAuthService_Register_Success(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	repo.On("Create", ctx, mock.AnythingOfType("*models.User")).Return(nil)

	res, err := svc.Register(ctx, RegisterInput{
		Email:    "Installer@Example.com",
		Password: "correct-horse",
		Name:     "Сергей",
		Role:     models.RoleInstaller,
	})
	assert.NoError(t, err)
	assert.Equal(t, "installer@example.com", res.User.Email)
	assert.Equal(t, models.RoleInstaller, res.User.Role)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
	assert.NotEmpty(t, res.TokenPair.RefreshToken)
	// Пароль хранится только в виде bcrypt хеша.
	assert.NotEqual(t, "correct-horse", res.User.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(res.User.PasswordHash), []byte("correct-horse")))
}

func TestAuthService_Register_AdminRoleForbidden(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "admin@example.com",
		Password: "correct-horse",
		Name:     "Админ",
		Role:     models.RoleAdmin,
	})
	assert.True(t, apperror.IsValidation(err))
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthService_Register_DuplicateEmail(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	repo.On("Create", ctx, mock.Anything).Return(repository.ErrUserAlreadyExists)

	_, err := svc.Register(ctx, RegisterInput{
		Email:    "taken@example.com",
		Password: "correct-horse",
		Name:     "Мария",
		Role:     models.RolePoster,
	})
	assert.Error(t, err)
	var appErr *apperror.AppError
	assert.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperror.ErrCodeConflict, appErr.Code)
}

func TestAuthService_Register_BadInput(t *testing.T) {
	_, svc := newAuthFixture()
	ctx := context.Background()

	cases := []RegisterInput{
		{Email: "not-an-email", Password: "correct-horse", Name: "Иван", Role: models.RolePoster},
		{Email: "ok@example.com", Password: "short", Name: "Иван", Role: models.RolePoster},
		{Email: "ok@example.com", Password: "correct-horse", Name: "И", Role: models.RolePoster},
		{Email: "ok@example.com", Password: "correct-horse", Name: "Иван", Role: "manager"},
	}
	for _, in := range cases {
		_, err := svc.Register(ctx, in)
		assert.True(t, apperror.IsValidation(err), "входные данные %+v должны отклоняться", in)
	}
}

func TestAuthService_Login_Success(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	user := &models.User{
		ID:           uuid.New(),
		Email:        "poster@example.com",
		PasswordHash: string(hash),
		Role:         models.RolePoster,
		IsActive:     true,
	}
	repo.On("GetByEmail", ctx, "poster@example.com").Return(user, nil)

	res, err := svc.Login(ctx, " Poster@Example.com ", "correct-horse")
	assert.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
}

func TestAuthService_Login_WrongPassword(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	hash, _ := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.DefaultCost)
	user := &models.User{ID: uuid.New(), PasswordHash: string(hash), IsActive: true}
	repo.On("GetByEmail", ctx, "poster@example.com").Return(user, nil)

	_, err := svc.Login(ctx, "poster@example.com", "wrong")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Login_UnknownEmail(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	repo.On("GetByEmail", ctx, "ghost@example.com").Return(nil, repository.ErrUserNotFound)

	_, err := svc.Login(ctx, "ghost@example.com", "whatever-pass")
	assert.ErrorIs(t, err, apperror.ErrInvalidCredentials)
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), IsActive: false}
	repo.On("GetByEmail", ctx, "blocked@example.com").Return(user, nil)

	_, err := svc.Login(ctx, "blocked@example.com", "correct-horse")
	assert.True(t, apperror.IsForbidden(err))
}

func TestAuthService_Refresh_RoundTrip(t *testing.T) {
	repo, svc := newAuthFixture()
	ctx := context.Background()

	user := &models.User{ID: uuid.New(), Role: models.RoleInstaller, IsActive: true}
	pair, err := svc.tokenManager.GeneratePair(user)
	assert.NoError(t, err)

	repo.On("GetByID", ctx, user.ID).Return(user, nil)

	res, err := svc.Refresh(ctx, pair.RefreshToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, res.User.ID)
	assert.NotEmpty(t, res.TokenPair.AccessToken)
}

func TestAuthService_Refresh_GarbageToken(t *testing.T) {
	_, svc := newAuthFixture()
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}
