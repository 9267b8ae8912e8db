package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/book"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// BookServiceInterface は蔵書ハンドラーが必要とするサービスインターフェース。
type BookServiceInterface interface {
	Save(ctx context.Context, in book.Input) (*model.Book, error)
	Delete(ctx context.Context, bookID string) error
	FindByID(ctx context.Context, id string) (*model.Book, error)
	FindByISBN(ctx context.Context, isbn string) (*model.Book, error)
	Search(ctx context.Context, q model.BookQuery) ([]*model.Book, error)
}

// BookHandler は蔵書管理のHTTPハンドラー。
type BookHandler struct {
	service BookServiceInterface
}

// NewBookHandler はBookHandlerを生成する。
func NewBookHandler(service BookServiceInterface) *BookHandler {
	return &BookHandler{service: service}
}

// bookResponse は蔵書情報のAPIレスポンス。
type bookResponse struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Author          string    `json:"author"`
	ISBN            string    `json:"isbn"`
	Publisher       string    `json:"publisher"`
	Year            int       `json:"year"`
	TotalCopies     int       `json:"total_copies"`
	AvailableCopies int       `json:"available_copies"`
	Available       bool      `json:"available"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func toBookResponse(b *model.Book) bookResponse {
	return bookResponse{
		ID:              b.ID,
		Title:           b.Title,
		Author:          b.Author,
		ISBN:            b.ISBN,
		Publisher:       b.Publisher,
		Year:            b.Year,
		TotalCopies:     b.TotalCopies,
		AvailableCopies: b.AvailableCopies,
		Available:       b.IsAvailable(),
		CreatedAt:       b.CreatedAt,
		UpdatedAt:       b.UpdatedAt,
	}
}

func toBookResponses(books []*model.Book) []bookResponse {
	resp := make([]bookResponse, len(books))
	for i, b := range books {
		resp[i] = toBookResponse(b)
	}
	return resp
}

// ListBooks は蔵書を検索する。
// GET /api/books?title=&author=&isbn=&available=true
// isbnが指定された場合は完全一致で0件または1件を返す。
func (h *BookHandler) ListBooks(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if isbn := strings.TrimSpace(q.Get("isbn")); isbn != "" {
		b, err := h.service.FindByISBN(r.Context(), isbn)
		if err != nil {
			if errors.Is(err, model.ErrNotFound) {
				writeJSON(w, http.StatusOK, []bookResponse{})
				return
			}
			handleServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, []bookResponse{toBookResponse(b)})
		return
	}

	var availableOnly bool
	if v := strings.TrimSpace(q.Get("available")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			handleServiceError(w, model.NewValidationError("Parâmetro available inválido. Use true ou false."))
			return
		}
		availableOnly = b
	}
	books, err := h.service.Search(r.Context(), model.BookQuery{
		Title:         q.Get("title"),
		Author:        q.Get("author"),
		AvailableOnly: availableOnly,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponses(books))
}

// GetBook は蔵書を返す。
// GET /api/books/{id}
func (h *BookHandler) GetBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Livro")
	if !ok {
		return
	}
	b, err := h.service.FindByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

// CreateBook は蔵書を登録する。
// POST /api/books
func (h *BookHandler) CreateBook(w http.ResponseWriter, r *http.Request) {
	var in book.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	in.ID = ""

	b, err := h.service.Save(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBookResponse(b))
}

// UpdateBook は蔵書を更新する。
// PUT /api/books/{id}
func (h *BookHandler) UpdateBook(w http.ResponseWriter, r *http.Request) {
	var in book.Input
	if !decodeJSON(w, r, &in) {
		return
	}
	id, ok := pathID(w, r, "Livro")
	if !ok {
		return
	}
	in.ID = id

	b, err := h.service.Save(r.Context(), in)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toBookResponse(b))
}

// DeleteBook は蔵書を削除する。
// DELETE /api/books/{id}
func (h *BookHandler) DeleteBook(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "Livro")
	if !ok {
		return
	}
	if err := h.service.Delete(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
