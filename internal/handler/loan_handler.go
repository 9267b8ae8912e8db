package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

const dateLayout = "2006-01-02"

// LoanServiceInterface は貸出ハンドラーが必要とするサービスインターフェース。
type LoanServiceInterface interface {
	CreateLoan(ctx context.Context, userID, bookID string) (*model.Loan, error)
	RegisterReturn(ctx context.Context, loanID string) (*model.Loan, error)
	GetLoan(ctx context.Context, id string) (*model.Loan, error)
	ListLoans(ctx context.Context, filter model.LoanFilter) ([]*model.Loan, error)
	ComputeFine(loan *model.Loan) int64
	Today() time.Time
}

// LoanHandler は貸出・返却のHTTPハンドラー。
type LoanHandler struct {
	service LoanServiceInterface
}

// NewLoanHandler はLoanHandlerを生成する。
func NewLoanHandler(service LoanServiceInterface) *LoanHandler {
	return &LoanHandler{service: service}
}

type checkoutRequest struct {
	UserID string `json:"user_id"`
	BookID string `json:"book_id"`
}

// loanResponse は貸出情報のAPIレスポンス。
// 未返却の貸出のFineは本日時点で返却した場合の延滞料。
type loanResponse struct {
	ID           string  `json:"id"`
	UserID       string  `json:"user_id"`
	BookID       string  `json:"book_id"`
	CheckoutDate string  `json:"checkout_date"`
	DueDate      string  `json:"due_date"`
	ReturnedAt   *string `json:"returned_at"`
	FineCents    int64   `json:"fine_cents"`
	Fine         string  `json:"fine"`
	Active       bool    `json:"active"`
	Overdue      bool    `json:"overdue"`
}

func (h *LoanHandler) toLoanResponse(l *model.Loan, today time.Time) loanResponse {
	fine := l.FineCents
	if l.Active {
		fine = h.service.ComputeFine(l)
	}

	resp := loanResponse{
		ID:           l.ID,
		UserID:       l.UserID,
		BookID:       l.BookID,
		CheckoutDate: l.CheckoutDate.Format(dateLayout),
		DueDate:      l.DueDate.Format(dateLayout),
		FineCents:    fine,
		Fine:         model.FormatBRL(fine),
		Active:       l.Active,
		Overdue:      l.IsOverdue(today),
	}
	if l.ReturnedAt != nil {
		s := l.ReturnedAt.Format(dateLayout)
		resp.ReturnedAt = &s
	}
	return resp
}

// ListLoans は貸出一覧を返す。
// GET /api/loans?filter=all|active|overdue
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	filter, ok := model.ParseLoanFilter(r.URL.Query().Get("filter"))
	if !ok {
		handleServiceError(w, model.NewValidationError("Filtro inválido. Use all, active ou overdue."))
		return
	}

	loans, err := h.service.ListLoans(r.Context(), filter)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	today := h.service.Today()
	resp := make([]loanResponse, len(loans))
	for i, l := range loans {
		resp[i] = h.toLoanResponse(l, today)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetLoan は貸出を返す。
// GET /api/loans/{id}
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Empréstimo")
	if !ok {
		return
	}
	l, err := h.service.GetLoan(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toLoanResponse(l, h.service.Today()))
}

// Checkout は貸出を登録する。
// POST /api/loans
func (h *LoanHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.UserID == "" || req.BookID == "" {
		handleServiceError(w, model.NewValidationError("Usuário e livro são obrigatórios."))
		return
	}

	userID, ok := canonicalID(req.UserID)
	if !ok {
		handleServiceError(w, model.NewNotFoundError("Usuário", req.UserID))
		return
	}
	bookID, ok := canonicalID(req.BookID)
	if !ok {
		handleServiceError(w, model.NewNotFoundError("Livro", req.BookID))
		return
	}

	l, err := h.service.CreateLoan(r.Context(), userID, bookID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, h.toLoanResponse(l, h.service.Today()))
}

// Return は返却を登録する。
// POST /api/loans/{id}/return
func (h *LoanHandler) Return(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Empréstimo")
	if !ok {
		return
	}
	l, err := h.service.RegisterReturn(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.toLoanResponse(l, h.service.Today()))
}
