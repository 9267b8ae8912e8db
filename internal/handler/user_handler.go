package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/user"
)

// UserServiceInterface は利用者ハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	Save(ctx context.Context, in user.Input, password string) (*model.User, error)
	Delete(ctx context.Context, userID string) error
	GetUser(ctx context.Context, id string) (*model.User, error)
	ListUsers(ctx context.Context, activeOnly bool) ([]*model.User, error)
}

// UserHandler は利用者管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// saveUserRequest は利用者の登録・更新リクエストのボディ。
type saveUserRequest struct {
	user.Input
	Password string `json:"password"`
}

// userResponse は利用者情報のAPIレスポンス。パスワードハッシュは含めない。
type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CPF       string    `json:"cpf"`
	Role      string    `json:"role"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toUserResponse(u *model.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		CPF:       u.CPF,
		Role:      string(u.Role),
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// ListUsers は利用者一覧を返す。
// GET /api/users?active=true
func (h *UserHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	activeOnly, _ := strconv.ParseBool(r.URL.Query().Get("active"))

	users, err := h.service.ListUsers(r.Context(), activeOnly)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := make([]userResponse, len(users))
	for i, u := range users {
		resp[i] = toUserResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetUser は利用者を返す。
// GET /api/users/{id}
func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Usuário")
	if !ok {
		return
	}
	u, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// CreateUser は利用者を登録する。
// POST /api/users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	var req saveUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	req.ID = ""

	u, err := h.service.Save(r.Context(), req.Input, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserResponse(u))
}

// UpdateUser は利用者を更新する。パスワードが空の場合は変更しない。
// PUT /api/users/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req saveUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id, ok := pathID(w, r, "Usuário")
	if !ok {
		return
	}
	req.ID = id

	u, err := h.service.Save(r.Context(), req.Input, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toUserResponse(u))
}

// DeleteUser は利用者を削除する。
// DELETE /api/users/{id}
func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Usuário")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
