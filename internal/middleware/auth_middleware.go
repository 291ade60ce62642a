package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/Dhoini/Billing-sync-service/internal/domain"
	"github.com/Dhoini/Billing-sync-service/pkg/logger"
)

const (
	// ContextUserIDKey ключ для хранения ID пользователя в контексте Gin
	ContextUserIDKey = "userID"

	authHeaderPrefix = "Bearer "
)

// TokenClaims полезная нагрузка токена доступа
type TokenClaims struct {
	jwt.RegisteredClaims
}

// TokenValidator интерфейс проверки токена доступа
type TokenValidator interface {
	Validate(tokenString string) (*TokenClaims, error)
}

// HMACTokenValidator проверяет токены, подписанные общим секретом
type HMACTokenValidator struct {
	secret []byte
}

// NewHMACTokenValidator создает новый валидатор токенов
func NewHMACTokenValidator(secret string) (*HMACTokenValidator, error) {
	if secret == "" {
		return nil, fmt.Errorf("auth: %w: jwt secret is required", domain.ErrMissingConfiguration)
	}
	return &HMACTokenValidator{secret: []byte(secret)}, nil
}

// Validate разбирает и проверяет токен
func (v *HMACTokenValidator) Validate(tokenString string) (*TokenClaims, error) {
	claims := &TokenClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("token is invalid")
	}
	return claims, nil
}

// JWTMiddleware проверяет токен доступа для защищенных маршрутов
type JWTMiddleware struct {
	validator TokenValidator
	log       *logger.Logger
}

// NewJWTMiddleware создает новый middleware аутентификации
func NewJWTMiddleware(validator TokenValidator, log *logger.Logger) *JWTMiddleware {
	return &JWTMiddleware{
		validator: validator,
		log:       log,
	}
}

// RequireAuth возвращает обработчик, требующий валидный токен
func (m *JWTMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			m.handleAuthError(c, "Missing authorization token")
			return
		}

		tokenString := strings.TrimPrefix(authHeader, authHeaderPrefix)
		claims, err := m.validator.Validate(tokenString)
		if err != nil {
			m.handleAuthError(c, fmt.Sprintf("Token validation failed: %v", err))
			return
		}

		// Subject токена - это ID пользователя
		c.Set(ContextUserIDKey, claims.Subject)
		c.Next()
	}
}

// handleAuthError прерывает запрос с ошибкой аутентификации
func (m *JWTMiddleware) handleAuthError(c *gin.Context, message string) {
	m.log.Warnw("Authentication failed", "path", c.Request.URL.Path, "reason", message)
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": message})
}
