// Package user は利用者管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/repository"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/security"
)

// ActiveLoanCounter は利用者ごとの未返却貸出数を数えるインターフェース。
type ActiveLoanCounter interface {
	CountActiveByUserID(ctx context.Context, userID string) (int, error)
}

// Config は利用者サービスの設定。
type Config struct {
	StrictCPF  bool // CPFの検査数字も検証する
	BcryptCost int  // 0の場合はbcrypt.DefaultCost
}

// Input は利用者の登録・更新内容を表す。
// Active が nil の場合、新規登録では有効、更新では現在の値を維持する。
type Input struct {
	ID     string `json:"id,omitempty"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	CPF    string `json:"cpf"`
	Role   string `json:"role"`
	Active *bool  `json:"active,omitempty"`
}

// AdminSeed は初回起動時に作成する管理者アカウントの情報。
type AdminSeed struct {
	Name     string
	Email    string
	CPF      string
	Password string
}

// Service は利用者管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	loans       ActiveLoanCounter
	sanitizer   security.TextSanitizer
	config      Config
	now         func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	loans ActiveLoanCounter,
	sanitizer security.TextSanitizer,
	config Config,
) *Service {
	if config.BcryptCost == 0 {
		config.BcryptCost = bcrypt.DefaultCost
	}
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		loans:       loans,
		sanitizer:   sanitizer,
		config:      config,
		now:         time.Now,
	}
}

// ValidateCPF はサービスの設定に従ってCPFを検証する。
func (s *Service) ValidateCPF(text string) bool {
	return ValidateCPF(text, s.config.StrictCPF)
}

// Save は利用者を検証して保存する。IDが空なら新規登録、それ以外は更新する。
// 新規登録ではパスワードが必須。更新時に空のパスワードを渡すと現在のハッシュを維持する。
func (s *Service) Save(ctx context.Context, in Input, password string) (*model.User, error) {
	name := strings.TrimSpace(in.Name)
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(in.Name)
	}
	if name == "" {
		return nil, model.NewValidationError("Nome é obrigatório")
	}

	email, err := normalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}

	cpf, ok := NormalizeCPF(in.CPF)
	if !ok || !s.ValidateCPF(cpf) {
		return nil, model.NewValidationError("CPF inválido")
	}

	role, ok := model.ParseRole(in.Role)
	if !ok {
		return nil, model.NewValidationError("Tipo de usuário inválido")
	}

	var existing *model.User
	if in.ID != "" {
		u, err := s.userRepo.FindByID(ctx, in.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if u == nil {
			return nil, model.NewNotFoundError("Usuário", in.ID)
		}
		existing = u
	} else if password == "" {
		return nil, model.NewValidationError("Senha é obrigatória")
	}

	if err := s.checkUnique(ctx, in.ID, email, cpf); err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:        in.ID,
		Name:      name,
		Email:     email,
		CPF:       cpf,
		Role:      role,
		Active:    true,
		UpdatedAt: now,
	}
	if in.Active != nil {
		user.Active = *in.Active
	}

	if password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(password), s.config.BcryptCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user.PasswordHash = string(hash)
	}

	if existing == nil {
		user.ID = uuid.New().String()
		user.CreatedAt = now
		if err := s.userRepo.Create(ctx, user); err != nil {
			return nil, err
		}
		slog.Info("user created",
			slog.String("user_id", user.ID),
			slog.String("role", string(user.Role)),
		)
		return user, nil
	}

	user.CreatedAt = existing.CreatedAt
	if in.Active == nil {
		user.Active = existing.Active
	}
	if password == "" {
		user.PasswordHash = existing.PasswordHash
	}
	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, err
	}

	// 無効化・パスワード変更・職員ロールの剥奪時は既存のログインを失効させる
	demoted := existing.Role.IsStaff() && !user.Role.IsStaff()
	if (existing.Active && !user.Active) || password != "" || demoted {
		if err := s.sessionRepo.DeleteByUserID(ctx, user.ID); err != nil {
			return nil, fmt.Errorf("failed to revoke sessions: %w", err)
		}
	}

	slog.Info("user updated", slog.String("user_id", user.ID))
	return user, nil
}

func (s *Service) checkUnique(ctx context.Context, id, email, cpf string) error {
	byEmail, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to check email: %w", err)
	}
	if byEmail != nil && byEmail.ID != id {
		return model.NewDuplicateEmailError()
	}

	byCPF, err := s.userRepo.FindByCPF(ctx, cpf)
	if err != nil {
		return fmt.Errorf("failed to check cpf: %w", err)
	}
	if byCPF != nil && byCPF.ID != id {
		return model.NewDuplicateCPFError()
	}
	return nil
}

// normalizeEmail はメールアドレスを検証し、小文字に正規化して返す。
func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		return "", model.NewValidationError("Email é obrigatório")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email || !strings.Contains(email[strings.LastIndex(email, "@"):], ".") {
		return "", model.NewValidationError("Email inválido")
	}
	return email, nil
}

// Authenticate はメールアドレスとパスワードで利用者を認証する。
// パスワードが一致した後に有効フラグを確認する。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil || user.PasswordHash == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, model.NewInvalidCredentialsError()
	}

	if !user.Active {
		slog.Info("inactive user attempted to sign in", slog.String("user_id", user.ID))
		return nil, model.NewInactiveUserError()
	}

	return user, nil
}

// Delete は利用者を削除する。未返却の貸出がある場合は削除できない。
func (s *Service) Delete(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.NewNotFoundError("Usuário", userID)
	}

	active, err := s.loans.CountActiveByUserID(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to count active loans: %w", err)
	}
	if active > 0 {
		return model.NewActiveLoansError("usuário")
	}

	if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return err
	}

	slog.Info("user deleted", slog.String("user_id", userID))
	return nil
}

// GetUser は指定IDの利用者を返す。
func (s *Service) GetUser(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewNotFoundError("Usuário", id)
	}
	return user, nil
}

// ListUsers は利用者一覧を返す。
func (s *Service) ListUsers(ctx context.Context, activeOnly bool) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// EnsureAdmin は管理者アカウントが無ければ作成する。
// 同じメールアドレスの利用者が既に存在する場合は何もしない。
func (s *Service) EnsureAdmin(ctx context.Context, seed AdminSeed) (*model.User, bool, error) {
	email := strings.ToLower(strings.TrimSpace(seed.Email))
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to find admin: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	user, err := s.Save(ctx, Input{
		Name:  seed.Name,
		Email: email,
		CPF:   seed.CPF,
		Role:  string(model.RoleAdmin),
	}, seed.Password)
	if err != nil {
		return nil, false, err
	}
	return user, true, nil
}
