package service

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/installmarket/installmarket-backend/internal/models"
)

func TestTokenManager_RoundTrip(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", 15*time.Minute, 720*time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RoleInstaller}

	pair, err := tm.GeneratePair(user)
	assert.NoError(t, err)
	assert.Equal(t, 15*time.Minute, pair.ExpiresIn)

	userID, role, err := tm.ParseAccess(pair.AccessToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, userID)
	assert.Equal(t, models.RoleInstaller, role)

	refreshID, err := tm.ParseRefresh(pair.RefreshToken)
	assert.NoError(t, err)
	assert.Equal(t, user.ID, refreshID)
}

func TestTokenManager_WrongSecret(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	other := NewTokenManager("other-access", "other-refresh", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RolePoster}

	pair, err := tm.GeneratePair(user)
	assert.NoError(t, err)

	_, _, err = other.ParseAccess(pair.AccessToken)
	assert.Error(t, err)

	_, err = other.ParseRefresh(pair.RefreshToken)
	assert.Error(t, err)
}

func TestTokenManager_TokensNotInterchangeable(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RolePoster}

	pair, err := tm.GeneratePair(user)
	assert.NoError(t, err)

	// Refresh токен подписан другим секретом и не проходит как access.
	_, _, err = tm.ParseAccess(pair.RefreshToken)
	assert.Error(t, err)

	_, err = tm.ParseRefresh(pair.AccessToken)
	assert.Error(t, err)
}

func TestTokenManager_ExpiredAccess(t *testing.T) {
	tm := NewTokenManager("access-secret", "refresh-secret", -time.Minute, time.Hour)
	user := &models.User{ID: uuid.New(), Role: models.RolePoster}

	pair, err := tm.GeneratePair(user)
	assert.NoError(t, err)

	_, _, err = tm.ParseAccess(pair.AccessToken)
	assert.Error(t, err)
}
