package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

const userColumns = `id, name, email, cpf, password_hash, active, role, created_at, updated_at`

// PostgresUserRepo はPostgreSQLを使用した利用者リポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDの利用者を取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

// FindByEmail は正規化済みメールアドレスで利用者を検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
}

// FindByCPF は数字11桁のCPFで利用者を検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByCPF(ctx context.Context, cpf string) (*model.User, error) {
	return r.findOne(ctx, `SELECT `+userColumns+` FROM users WHERE cpf = $1`, cpf)
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg string) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// List は利用者一覧を名前順で返す。
func (r *PostgresUserRepo) List(ctx context.Context, activeOnly bool) ([]*model.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY name, created_at`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []*model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

// CountActive は有効な利用者数を返す。
func (r *PostgresUserRepo) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT count(*) FROM users WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count active users: %w", err)
	}
	return n, nil
}

// Create は利用者を作成する。
// email、cpfの一意制約違反はそれぞれ重複エラーに変換する。
func (r *PostgresUserRepo) Create(ctx context.Context, user *model.User) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (id, name, email, cpf, password_hash, active, role, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID, user.Name, user.Email, user.CPF, user.PasswordHash, user.Active, string(user.Role),
		user.CreatedAt, user.UpdatedAt,
	)
	if err != nil {
		if apiErr := userConstraintError(err); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}
	return nil
}

// Update は利用者情報を更新する。
func (r *PostgresUserRepo) Update(ctx context.Context, user *model.User) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users
		 SET name = $2, email = $3, cpf = $4, password_hash = $5, active = $6, role = $7, updated_at = $8
		 WHERE id = $1`,
		user.ID, user.Name, user.Email, user.CPF, user.PasswordHash, user.Active, string(user.Role), user.UpdatedAt,
	)
	if err != nil {
		if apiErr := userConstraintError(err); apiErr != nil {
			return apiErr
		}
		return fmt.Errorf("failed to update user: %w", err)
	}
	return expectOneRow(result, "Usuário", user.ID)
}

// DeleteByID は指定IDの利用者を削除する。
// セッションはCASCADE削除される。
func (r *PostgresUserRepo) DeleteByID(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM users WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return expectOneRow(result, "Usuário", id)
}

func scanUser(row rowScanner) (*model.User, error) {
	u := &model.User{}
	var role string
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.CPF, &u.PasswordHash, &u.Active, &role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	u.Role = model.Role(role)
	return u, nil
}

func userConstraintError(err error) error {
	switch uniqueViolation(err) {
	case "users_email_key":
		return model.NewDuplicateEmailError()
	case "users_cpf_key":
		return model.NewDuplicateCPFError()
	}
	return nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
