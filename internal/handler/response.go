package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/middleware"
	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み取る。失敗時は400を書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_REQUEST",
			Message:  "Não foi possível interpretar o corpo da requisição.",
			Category: "validation",
			Action:   "Envie um JSON válido.",
		})
		return false
	}
	return true
}

// pathID はURLパスの{id}をUUIDとして取り出す。
// UUIDとして解釈できない場合はresourceのNotFoundを書き込みfalseを返す。
func pathID(w http.ResponseWriter, r *http.Request, resource string) (string, bool) {
	raw := chi.URLParam(r, "id")
	id, ok := canonicalID(raw)
	if !ok {
		handleServiceError(w, model.NewNotFoundError(resource, raw))
		return "", false
	}
	return id, true
}

// canonicalID はUUIDを小文字ハイフン区切りの形式にそろえる。
func canonicalID(raw string) (string, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", false
	}
	return id.String(), true
}

// writeUnauthorized は未認証エラーを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	middleware.WriteErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "Autenticação necessária.",
		Category: "auth",
		Action:   "Faça login novamente.",
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeValidation:
		return http.StatusBadRequest
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateISBN, model.ErrCodeDuplicateEmail, model.ErrCodeDuplicateCPF,
		model.ErrCodeActiveLoans, model.ErrCodeBookUnavailable, model.ErrCodeAlreadyReturned:
		return http.StatusConflict
	case model.ErrCodeInactiveUser, model.ErrCodeAccessDenied:
		return http.StatusForbidden
	case model.ErrCodeInvalidCredentials:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
