package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

const tokenIssuer = "bibliotech"

// tokenClaims はAPIトークンのクレーム。subjectに利用者IDを持つ。
type tokenClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// IssueToken はスタッフを認証し、HS256で署名したAPIトークンを発行する。
func (s *Service) IssueToken(ctx context.Context, email, password string) (string, time.Time, error) {
	user, err := s.authenticateStaff(ctx, email, password)
	if err != nil {
		return "", time.Time{}, err
	}

	token, expiresAt, err := s.signToken(user)
	if err != nil {
		return "", time.Time{}, err
	}

	slog.Info("api token issued", slog.String("user_id", user.ID))
	return token, expiresAt, nil
}

func (s *Service) signToken(user *model.User) (string, time.Time, error) {
	if s.config.TokenSecret == "" {
		return "", time.Time{}, errors.New("token secret is empty")
	}

	now := s.now()
	expiresAt := now.Add(s.maxAge())
	claims := tokenClaims{
		Role: string(user.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.TokenSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// ParseToken はAPIトークンの署名と有効期限を検証し、利用者IDを返す。
func (s *Service) ParseToken(tokenStr string) (string, error) {
	if s.config.TokenSecret == "" {
		return "", errors.New("token secret is empty")
	}

	tok, err := jwt.ParseWithClaims(tokenStr, &tokenClaims{}, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(s.config.TokenSecret), nil
	},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !tok.Valid {
		if err == nil {
			err = errors.New("invalid token")
		}
		return "", err
	}

	c, _ := tok.Claims.(*tokenClaims)
	if c == nil || c.Subject == "" {
		return "", errors.New("invalid claims")
	}
	return c.Subject, nil
}

// VerifyToken はAPIトークンを検証し、現在も有効なスタッフであることを確認して利用者IDを返す。
func (s *Service) VerifyToken(ctx context.Context, tokenStr string) (string, error) {
	userID, err := s.ParseToken(tokenStr)
	if err != nil {
		return "", err
	}

	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || !user.Active || !user.Role.IsStaff() {
		return "", errors.New("token subject is no longer authorized")
	}
	return userID, nil
}
