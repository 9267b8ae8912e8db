package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/repository"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/security"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn func(ctx context.Context, email string) (*model.User, error)
	findByCPFFn   func(ctx context.Context, cpf string) (*model.User, error)
	listFn        func(ctx context.Context, activeOnly bool) ([]*model.User, error)
	createFn      func(ctx context.Context, u *model.User) error
	updateFn      func(ctx context.Context, u *model.User) error
	deleteByIDFn  func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}
func (m *mockUserRepo) FindByCPF(ctx context.Context, cpf string) (*model.User, error) {
	if m.findByCPFFn != nil {
		return m.findByCPFFn(ctx, cpf)
	}
	return nil, nil
}
func (m *mockUserRepo) List(ctx context.Context, activeOnly bool) ([]*model.User, error) {
	if m.listFn != nil {
		return m.listFn(ctx, activeOnly)
	}
	return nil, nil
}
func (m *mockUserRepo) CountActive(_ context.Context) (int, error) { return 0, nil }
func (m *mockUserRepo) Create(ctx context.Context, u *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil
}
func (m *mockUserRepo) Update(ctx context.Context, u *model.User) error {
	if m.updateFn != nil {
		return m.updateFn(ctx, u)
	}
	return nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) Create(_ context.Context, _ *model.Session) error { return nil }
func (m *mockSessionRepo) FindByID(_ context.Context, _ string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(_ context.Context, _ string) error { return nil }
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	if m.deleteByUserIDFn != nil {
		return m.deleteByUserIDFn(ctx, userID)
	}
	return nil
}
func (m *mockSessionRepo) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type mockLoanCounter struct {
	countFn func(ctx context.Context, userID string) (int, error)
}

func (m *mockLoanCounter) CountActiveByUserID(ctx context.Context, userID string) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx, userID)
	}
	return 0, nil
}

var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.SessionRepository = (*mockSessionRepo)(nil)
var _ ActiveLoanCounter = (*mockLoanCounter)(nil)

func newTestService(repo *mockUserRepo, sessions *mockSessionRepo, loans *mockLoanCounter, cfg Config) *Service {
	if sessions == nil {
		sessions = &mockSessionRepo{}
	}
	if loans == nil {
		loans = &mockLoanCounter{}
	}
	cfg.BcryptCost = bcrypt.MinCost
	svc := NewService(repo, sessions, loans, security.NewTextSanitizer(), cfg)
	svc.now = func() time.Time { return time.Date(2025, 11, 2, 10, 0, 0, 0, time.UTC) }
	return svc
}

func validInput() Input {
	return Input{
		Name:  "Maria Silva",
		Email: "Maria@Example.com",
		CPF:   "123.456.789-01",
		Role:  "ALUNO",
	}
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

// --- Save ---

func TestSave_Create_NormalizesAndHashes(t *testing.T) {
	var created *model.User
	repo := &mockUserRepo{createFn: func(_ context.Context, u *model.User) error {
		created = u
		return nil
	}}
	svc := newTestService(repo, nil, nil, Config{})

	got, err := svc.Save(context.Background(), validInput(), "senha123")
	require.NoError(t, err)
	require.NotNil(t, created)
	assert.NotEmpty(t, got.ID)
	assert.Equal(t, "maria@example.com", got.Email)
	assert.Equal(t, "12345678901", got.CPF)
	assert.Equal(t, model.RoleStudent, got.Role)
	assert.True(t, got.Active)
	assert.NotEqual(t, "senha123", got.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(got.PasswordHash), []byte("senha123")))
}

func TestSave_ValidationErrors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(in *Input)
		password string
	}{
		{"氏名が空", func(in *Input) { in.Name = " " }, "senha123"},
		{"メールが空", func(in *Input) { in.Email = "" }, "senha123"},
		{"メールの書式不正", func(in *Input) { in.Email = "maria.example.com" }, "senha123"},
		{"メールのドメインにドットがない", func(in *Input) { in.Email = "maria@localhost" }, "senha123"},
		{"CPFの書式不正", func(in *Input) { in.CPF = "123.456" }, "senha123"},
		{"ロールが空", func(in *Input) { in.Role = "" }, "senha123"},
		{"未知のロール", func(in *Input) { in.Role = "VISITANTE" }, "senha123"},
		{"新規登録でパスワードなし", func(in *Input) {}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &mockUserRepo{createFn: func(_ context.Context, _ *model.User) error {
				t.Fatal("Create should not be called")
				return nil
			}}
			svc := newTestService(repo, nil, nil, Config{})
			in := validInput()
			tt.mutate(&in)

			_, err := svc.Save(context.Background(), in, tt.password)
			assert.True(t, errors.Is(err, model.ErrValidation), "got %v", err)
		})
	}
}

func TestSave_StrictCPFRejectsBadChecksum(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil, nil, Config{StrictCPF: true})

	_, err := svc.Save(context.Background(), validInput(), "senha123")
	assert.True(t, errors.Is(err, model.ErrValidation), "got %v", err)

	in := validInput()
	in.CPF = "529.982.247-25"
	_, err = svc.Save(context.Background(), in, "senha123")
	assert.NoError(t, err)
}

func TestSave_DuplicateEmail_CaseInsensitive(t *testing.T) {
	repo := &mockUserRepo{findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
		if email == "maria@example.com" {
			return &model.User{ID: "other", Email: email}, nil
		}
		return nil, nil
	}}
	svc := newTestService(repo, nil, nil, Config{})
	in := validInput()
	in.Email = "MARIA@EXAMPLE.COM"

	_, err := svc.Save(context.Background(), in, "senha123")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrDuplicateEmail))
	assert.Contains(t, err.Error(), "Email já cadastrado")
}

func TestSave_DuplicateCPF_FormattedAndDigits(t *testing.T) {
	repo := &mockUserRepo{findByCPFFn: func(_ context.Context, cpf string) (*model.User, error) {
		if cpf == "12345678901" {
			return &model.User{ID: "other", CPF: cpf}, nil
		}
		return nil, nil
	}}
	svc := newTestService(repo, nil, nil, Config{})
	in := validInput()
	in.CPF = "12345678901"

	_, err := svc.Save(context.Background(), in, "senha123")
	assert.True(t, errors.Is(err, model.ErrDuplicateCPF), "got %v", err)
}

func TestSave_Update_KeepsPasswordAndActive(t *testing.T) {
	existing := &model.User{ID: "u1", Email: "maria@example.com", CPF: "12345678901",
		PasswordHash: "old-hash", Active: false, Role: model.RoleStudent,
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	var updated *model.User
	repo := &mockUserRepo{
		findByIDFn:    func(_ context.Context, _ string) (*model.User, error) { return existing, nil },
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) { return existing, nil },
		findByCPFFn:   func(_ context.Context, _ string) (*model.User, error) { return existing, nil },
		updateFn: func(_ context.Context, u *model.User) error {
			updated = u
			return nil
		},
	}
	sessions := &mockSessionRepo{deleteByUserIDFn: func(_ context.Context, _ string) error {
		t.Fatal("sessions should not be revoked")
		return nil
	}}
	svc := newTestService(repo, sessions, nil, Config{})

	in := validInput()
	in.ID = "u1"
	in.Name = "Maria S. Souza"
	in.Role = "PROFESSOR"

	got, err := svc.Save(context.Background(), in, "")
	require.NoError(t, err)
	require.NotNil(t, updated)
	assert.Equal(t, "old-hash", got.PasswordHash)
	assert.False(t, got.Active)
	assert.Equal(t, model.RoleTeacher, got.Role)
	assert.Equal(t, existing.CreatedAt, got.CreatedAt)
}

func TestSave_Update_DeactivationRevokesSessions(t *testing.T) {
	existing := &model.User{ID: "u1", Active: true, PasswordHash: "old-hash"}
	revoked := ""
	repo := &mockUserRepo{findByIDFn: func(_ context.Context, _ string) (*model.User, error) { return existing, nil }}
	sessions := &mockSessionRepo{deleteByUserIDFn: func(_ context.Context, id string) error {
		revoked = id
		return nil
	}}
	svc := newTestService(repo, sessions, nil, Config{})

	inactive := false
	in := validInput()
	in.ID = "u1"
	in.Active = &inactive

	_, err := svc.Save(context.Background(), in, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", revoked)
}

func TestSave_Update_DemotionFromStaffRevokesSessions(t *testing.T) {
	tests := []struct {
		name       string
		from       model.Role
		to         string
		wantRevoke bool
	}{
		{"司書から学生", model.RoleLibrarian, "STUDENT", true},
		{"管理者から教員", model.RoleAdmin, "TEACHER", true},
		{"管理者から司書", model.RoleAdmin, "LIBRARIAN", false},
		{"学生から教員", model.RoleStudent, "TEACHER", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := &model.User{ID: "u1", Active: true, PasswordHash: "old-hash", Role: tt.from}
			repo := &mockUserRepo{findByIDFn: func(_ context.Context, _ string) (*model.User, error) { return existing, nil }}
			revoked := false
			sessions := &mockSessionRepo{deleteByUserIDFn: func(_ context.Context, _ string) error {
				revoked = true
				return nil
			}}
			svc := newTestService(repo, sessions, nil, Config{})

			in := validInput()
			in.ID = "u1"
			in.Role = tt.to

			_, err := svc.Save(context.Background(), in, "")
			require.NoError(t, err)
			assert.Equal(t, tt.wantRevoke, revoked)
		})
	}
}

func TestSave_Update_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil, nil, Config{})
	in := validInput()
	in.ID = "missing"

	_, err := svc.Save(context.Background(), in, "")
	assert.True(t, errors.Is(err, model.ErrNotFound), "got %v", err)
}

// --- Authenticate ---

func TestAuthenticate(t *testing.T) {
	active := &model.User{ID: "u1", Email: "maria@example.com", PasswordHash: hashOf(t, "senha123"), Active: true}
	inactive := &model.User{ID: "u2", Email: "joao@example.com", PasswordHash: hashOf(t, "senha123"), Active: false}
	repo := &mockUserRepo{findByEmailFn: func(_ context.Context, email string) (*model.User, error) {
		switch email {
		case active.Email:
			return active, nil
		case inactive.Email:
			return inactive, nil
		}
		return nil, nil
	}}
	svc := newTestService(repo, nil, nil, Config{})

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
	}{
		{"正しい資格情報", "Maria@Example.com", "senha123", nil},
		{"パスワード誤り", "maria@example.com", "senha124", model.ErrInvalidCredentials},
		{"未登録のメール", "nobody@example.com", "senha123", model.ErrInvalidCredentials},
		{"空のパスワード", "maria@example.com", "", model.ErrInvalidCredentials},
		{"無効な利用者", "joao@example.com", "senha123", model.ErrInactiveUser},
		{"無効な利用者でもパスワード誤りは資格情報エラー", "joao@example.com", "x", model.ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// 同じ値の別インスタンスで比較されることを確認するため文字列を複製する
			password := string([]byte(tt.password))
			got, err := svc.Authenticate(context.Background(), tt.email, password)
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, "u1", got.ID)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			assert.Nil(t, got)
		})
	}
}

// --- Delete ---

func TestDelete(t *testing.T) {
	t.Run("存在しない", func(t *testing.T) {
		svc := newTestService(&mockUserRepo{}, nil, nil, Config{})
		err := svc.Delete(context.Background(), "missing")
		assert.True(t, errors.Is(err, model.ErrNotFound))
	})

	t.Run("未返却の貸出あり", func(t *testing.T) {
		repo := &mockUserRepo{
			findByIDFn: func(_ context.Context, id string) (*model.User, error) { return &model.User{ID: id}, nil },
			deleteByIDFn: func(_ context.Context, _ string) error {
				t.Fatal("DeleteByID should not be called")
				return nil
			},
		}
		loans := &mockLoanCounter{countFn: func(_ context.Context, _ string) (int, error) { return 2, nil }}
		svc := newTestService(repo, nil, loans, Config{})

		err := svc.Delete(context.Background(), "u1")
		assert.True(t, errors.Is(err, model.ErrActiveLoans))
	})

	t.Run("削除順序: sessions → user", func(t *testing.T) {
		var order []string
		repo := &mockUserRepo{
			findByIDFn: func(_ context.Context, id string) (*model.User, error) { return &model.User{ID: id}, nil },
			deleteByIDFn: func(_ context.Context, _ string) error {
				order = append(order, "user")
				return nil
			},
		}
		sessions := &mockSessionRepo{deleteByUserIDFn: func(_ context.Context, _ string) error {
			order = append(order, "sessions")
			return nil
		}}
		svc := newTestService(repo, sessions, nil, Config{})

		require.NoError(t, svc.Delete(context.Background(), "u1"))
		assert.Equal(t, []string{"sessions", "user"}, order)
	})
}

// --- EnsureAdmin ---

func TestEnsureAdmin_CreatesOnce(t *testing.T) {
	var stored *model.User
	repo := &mockUserRepo{
		findByEmailFn: func(_ context.Context, _ string) (*model.User, error) { return stored, nil },
		createFn: func(_ context.Context, u *model.User) error {
			stored = u
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, Config{})
	seed := AdminSeed{Name: "Admin", Email: "admin@bibliotech.local", CPF: "000.000.000-00", Password: "admin123"}

	u, created, err := svc.EnsureAdmin(context.Background(), seed)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.RoleAdmin, u.Role)

	_, created, err = svc.EnsureAdmin(context.Background(), seed)
	require.NoError(t, err)
	assert.False(t, created)
}

func TestListUsers_EmptyIsNotNil(t *testing.T) {
	svc := newTestService(&mockUserRepo{}, nil, nil, Config{})

	users, err := svc.ListUsers(context.Background(), true)
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}
