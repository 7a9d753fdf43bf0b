package auth

import (
	"context"
	"errors"
	"time"

	"github.com/carboncred/carboncred/internal/config"
	"github.com/carboncred/carboncred/internal/operator"
)

// Service issues and refreshes operator tokens.
type Service struct {
	cfg  config.Config
	repo operator.Repository
}

// NewService builds the auth service.
func NewService(cfg config.Config, repo operator.Repository) *Service {
	return &Service{cfg: cfg, repo: repo}
}

// TokenPair bundles the issued tokens.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Login issues access and refresh tokens for an authenticated operator.
func (s *Service) Login(op operator.Operator) (TokenPair, error) {
	access, accessExp, err := s.sign(op, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, _, err := s.sign(op, s.cfg.RefreshSecret, s.cfg.RefreshTokenTTL)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, ExpiresIn: int64(time.Until(accessExp).Seconds())}, nil
}

func (s *Service) sign(op operator.Operator, secret string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := map[string]any{
		"sub":     op.ID,
		"email":   op.Email,
		"company": op.Company,
		"ver":     op.TokenVersion,
		"iat":     now.Unix(),
		"exp":     exp.Unix(),
	}
	signed, err := SignHS256(claims, []byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, exp, nil
}

// Refresh verifies the refresh token and returns a new access token if valid.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, int64, error) {
	claims, err := ParseAndVerifyHS256(refreshToken, []byte(s.cfg.RefreshSecret))
	if err != nil {
		return "", 0, errors.New("invalid refresh token")
	}
	sub, _ := claims["sub"].(string)
	verFloat, _ := claims["ver"].(float64)
	ver := int(verFloat)

	op, err := s.repo.FindByID(ctx, sub)
	if err != nil {
		return "", 0, errors.New("operator not found")
	}
	if op.TokenVersion != ver {
		return "", 0, errors.New("token version invalidated")
	}

	access, _, err := s.sign(op, s.cfg.JWTSecret, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", 0, err
	}
	return access, int64(s.cfg.AccessTokenTTL.Seconds()), nil
}

// Logout increments token version so older tokens become invalid.
func (s *Service) Logout(ctx context.Context, operatorID string) error {
	op, err := s.repo.FindByID(ctx, operatorID)
	if err != nil {
		return err
	}
	return s.repo.UpdateTokenVersion(ctx, op.ID, op.TokenVersion+1)
}
