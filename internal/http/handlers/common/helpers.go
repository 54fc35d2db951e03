package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/installmarket/installmarket-backend/internal/http/middleware"
)

var (
	// ErrNoUser возвращается, когда в контексте нет пользователя.
	ErrNoUser = errors.New("пользователь не найден в контексте")
)

// CurrentUserID извлекает идентификатор пользователя из gin.Context.
func CurrentUserID(c *gin.Context) (uuid.UUID, error) {
	raw, exists := c.Get(middleware.ContextUserIDKey)
	if !exists {
		return uuid.Nil, ErrNoUser
	}
	userID, ok := raw.(uuid.UUID)
	if !ok {
		return uuid.Nil, ErrNoUser
	}
	return userID, nil
}

// CurrentUserRole извлекает роль пользователя из gin.Context.
func CurrentUserRole(c *gin.Context) (string, error) {
	raw, exists := c.Get(middleware.ContextRoleKey)
	if !exists {
		return "", ErrNoUser
	}
	role, ok := raw.(string)
	if !ok {
		return "", ErrNoUser
	}
	return role, nil
}

// ParseUUIDParam разбирает UUID из параметра пути.
func ParseUUIDParam(c *gin.Context, paramName string) (uuid.UUID, error) {
	return uuid.Parse(c.Param(paramName))
}

// RespondUnauthorized отвечает 401 и прерывает обработку.
func RespondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}

// RespondBadRequest отвечает 400 и прерывает обработку.
func RespondBadRequest(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": message})
}

// Fail передаёт ошибку централизованному обработчику.
func Fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
