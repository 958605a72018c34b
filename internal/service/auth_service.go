package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/tramites-gateway/internal/models"
	appErrors "github.com/noah-isme/tramites-gateway/pkg/errors"
)

// AuthConfig defines how backend-issued access tokens are verified.
type AuthConfig struct {
	AccessTokenSecret string
	Leeway            time.Duration
}

// AuthService validates bearer tokens and turns their claims into workflow actors.
// Tokens are issued by the backend; the gateway never mints them.
type AuthService struct {
	logger *zap.Logger
	config AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{logger: logger, config: config}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "missing token")
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, jwt.WithLeeway(s.config.Leeway))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, appErrors.Wrap(err, appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, "session expired")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.UserID == "" {
		claims.UserID = claims.Subject
	}
	if claims.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token carries no user id")
	}
	return claims, nil
}

// Authenticate validates the token and builds the actor it represents.
func (s *AuthService) Authenticate(tokenString string) (models.Actor, *models.JWTClaims, error) {
	claims, err := s.ValidateToken(tokenString)
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return models.Actor{}, nil, err
	}
	return ActorFromClaims(claims, strings.TrimSpace(tokenString)), claims, nil
}

// ActorFromClaims maps token claims onto an actor. The session is the token id, else the user id.
func ActorFromClaims(claims *models.JWTClaims, token string) models.Actor {
	if claims == nil {
		return models.Actor{}
	}
	session := claims.ID
	if session == "" {
		session = claims.UserID
	}
	return models.Actor{
		UserID:    claims.UserID,
		Name:      claims.Name,
		Role:      models.NormalizeRole(claims.Role),
		SubUnitID: claims.SubUnitID,
		SessionID: session,
		Token:     token,
	}
}
