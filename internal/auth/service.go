// Package auth は管理コンソールのログイン、セッション管理、APIトークン発行を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/repository"
)

// Authenticator はメールアドレスとパスワードで利用者を認証するインターフェース。
type Authenticator interface {
	Authenticate(ctx context.Context, email, password string) (*model.User, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int    // セッション・トークンの有効期間（秒）
	TokenSecret   string // APIトークンの署名鍵
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	authn       Authenticator
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	config      ServiceConfig
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	authn Authenticator,
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	config ServiceConfig,
) *Service {
	return &Service{
		authn:       authn,
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		config:      config,
		now:         time.Now,
	}
}

// Login はスタッフを認証してセッションを発行する。
// 利用者区分がスタッフでない場合はAccessDeniedエラーを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.Session, *model.User, error) {
	user, err := s.authenticateStaff(ctx, email, password)
	if err != nil {
		return nil, nil, err
	}

	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)
	return session, user, nil
}

func (s *Service) authenticateStaff(ctx context.Context, email, password string) (*model.User, error) {
	user, err := s.authn.Authenticate(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if !user.Role.IsStaff() {
		slog.Warn("non-staff user attempted to sign in",
			slog.String("user_id", user.ID),
			slog.String("role", string(user.Role)),
		)
		return nil, model.NewAccessDeniedError()
	}
	return user, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out")
	return nil
}

// GetCurrentUser はセッションから現在のユーザーを取得する。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.User, error) {
	if sessionID == "" {
		return nil, fmt.Errorf("session ID is required")
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("session not found or expired")
	}

	return s.GetUser(ctx, session.UserID)
}

// GetUser は指定IDのユーザーを取得する。
func (s *Service) GetUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("Usuário", userID)
	}
	return user, nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		ExpiresAt: now.Add(s.maxAge()),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

func (s *Service) maxAge() time.Duration {
	return time.Duration(s.config.SessionMaxAge) * time.Second
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
