package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fdg312/nutriplan/internal/config"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrDevAuthClosed = errors.New("dev auth disabled")
	ErrInvalidUserID = errors.New("invalid user id")
)

const (
	DefaultDevUserID = "dev-user"
	devTTL           = 30 * 24 * time.Hour
	maxUserIDLength  = 128
)

// Service: сервис авторизации
type Service struct {
	config *config.Config
	now    func() time.Time
}

func NewService(cfg *config.Config) *Service {
	return &Service{config: cfg, now: time.Now}
}

// SignInDev: dev-авторизация, выдает JWT на JWT_TTL_MINUTES (по умолчанию 30 дней)
func (s *Service) SignInDev(ctx context.Context, req DevAuthRequest) (*DevAuthResponse, error) {
	_ = ctx

	if s.config.AuthMode != "dev" {
		return nil, ErrDevAuthClosed
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = DefaultDevUserID
	}
	if len(userID) > maxUserIDLength || strings.ContainsAny(userID, " \t\r\n/") {
		return nil, ErrInvalidUserID
	}

	ttl := devTTL
	if s.config.JWTTTLMinutes > 0 {
		ttl = time.Duration(s.config.JWTTTLMinutes) * time.Minute
	}

	accessToken, err := s.generateJWTWithTTL(userID, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dev JWT: %w", err)
	}

	return &DevAuthResponse{
		AccessToken: accessToken,
		TokenType:   "Bearer",
		ExpiresIn:   int64(ttl.Seconds()),
		UserID:      userID,
	}, nil
}

func (s *Service) generateJWTWithTTL(userID string, ttl time.Duration) (string, error) {
	now := s.now()
	exp := now.Add(ttl)

	claims := jwt.MapClaims{
		"sub": userID,
		"iss": s.config.JWTIssuer,
		"exp": exp.Unix(),
		"iat": now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

// VerifyJWT: проверка JWT токена, возвращает sub
func (s *Service) VerifyJWT(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	}, jwt.WithIssuer(s.config.JWTIssuer), jwt.WithTimeFunc(s.now))

	if err != nil {
		return "", ErrInvalidToken
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		sub, ok := claims["sub"].(string)
		if !ok || sub == "" {
			return "", ErrInvalidToken
		}
		return sub, nil
	}

	return "", ErrInvalidToken
}
