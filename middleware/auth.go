package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"ai-question-service/apperr"
	"ai-question-service/config"

	"github.com/apex/log"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// UserIDKey is the gin context key holding the authenticated caller.
const UserIDKey = "user_id"

var ErrInvalidSession = errors.New("invalid or expired session")

// SessionValidator resolves a bearer token to the caller's user id.
type SessionValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// NewSessionValidator picks the validator for cfg.AuthMode.
func NewSessionValidator(cfg *config.Config) (SessionValidator, error) {
	switch cfg.AuthMode {
	case config.AuthModeRemote:
		return NewRemoteValidator(cfg.AuthServiceURL), nil
	case config.AuthModeJWT:
		return NewJWTValidator(cfg.JWTSecret), nil
	}
	return nil, fmt.Errorf("unknown auth mode %q", cfg.AuthMode)
}

// AuthMiddleware rejects requests without a valid session before any handler runs.
func AuthMiddleware(validator SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.WithField("client_ip", c.ClientIP()).Warn("auth.missing_header")
			abortWithError(c, apperr.Unauthorized("missing authorization header"))
			return
		}

		tokenString := extractToken(authHeader)
		if tokenString == "" {
			log.WithField("client_ip", c.ClientIP()).Warn("auth.invalid_format")
			abortWithError(c, apperr.Unauthorized("invalid authorization format"))
			return
		}

		userID, err := validator.Validate(c.Request.Context(), tokenString)
		if err != nil {
			log.WithError(err).WithField("client_ip", c.ClientIP()).Warn("auth.rejected")
			abortWithError(c, apperr.Unauthorized("invalid or expired session"))
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

func extractToken(authHeader string) string {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// RemoteValidator asks auth-service whether a token is valid.
type RemoteValidator struct {
	url    string
	client *http.Client
}

func NewRemoteValidator(authServiceURL string) *RemoteValidator {
	return &RemoteValidator{
		url:    strings.TrimRight(authServiceURL, "/") + "/api/v3/validate-token",
		client: &http.Client{Timeout: 6 * time.Second},
	}
}

func (v *RemoteValidator) Validate(ctx context.Context, token string) (string, error) {
	body, _ := json.Marshal(map[string]string{"token": token})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create validation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to call auth-service: %w", err)
	}
	defer resp.Body.Close()

	var result struct {
		Valid      bool   `json:"valid"`
		UserID     string `json:"user_id"`
		CustomerID string `json:"customer_id"`
		Error      string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("failed to decode auth-service response (status %d): %w", resp.StatusCode, err)
	}

	id := result.UserID
	if id == "" {
		id = result.CustomerID
	}
	if !result.Valid || id == "" {
		return "", ErrInvalidSession
	}
	return id, nil
}

// JWTValidator verifies HS256 access tokens locally.
type JWTValidator struct {
	secret []byte
}

func NewJWTValidator(secret string) *JWTValidator {
	return &JWTValidator{secret: []byte(secret)}
}

func (v *JWTValidator) Validate(_ context.Context, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", ErrInvalidSession
	}
	if tokenType, _ := claims["type"].(string); tokenType == "refresh" {
		return "", errors.New("cannot use refresh token for authentication")
	}
	userID, ok := claims["user_id"].(string)
	if !ok || userID == "" {
		return "", ErrInvalidSession
	}
	return userID, nil
}
