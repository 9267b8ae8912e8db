package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

type mockTokenVerifier struct {
	verifyFn func(ctx context.Context, token string) (string, error)
}

func (m *mockTokenVerifier) VerifyToken(ctx context.Context, token string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(ctx, token)
	}
	return "", errors.New("invalid token")
}

func validSessionRepo(userID string) *mockSessionRepository {
	return &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{
					ID:        "valid-session-id",
					UserID:    userID,
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsUserID(t *testing.T) {
	mw := NewSessionMiddleware(validSessionRepo("user-123"), nil)

	var capturedUserID string
	var bearer bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := UserIDFromContext(r.Context())
		if err != nil {
			t.Errorf("expected no error, got %v", err)
		}
		capturedUserID = userID
		bearer = IsBearerAuthenticated(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-123" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-123")
	}
	if bearer {
		t.Error("cookie session must not be marked as bearer")
	}
}

func TestSessionMiddleware_NoSessionCookie_Returns401(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionRepository{}, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestSessionMiddleware_EmptySessionCookie_Returns401(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionRepository{}, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: ""})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_ExpiredSession_Returns401(t *testing.T) {
	// 期限切れでnilを返すリポジトリの動作をシミュレート
	mw := NewSessionMiddleware(validSessionRepo("user-123"), nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "expired-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_RepositoryError_Returns401(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			return nil, context.DeadlineExceeded
		},
	}
	mw := NewSessionMiddleware(repo, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "some-session"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_ValidBearerToken_InjectsUserID(t *testing.T) {
	tokens := &mockTokenVerifier{
		verifyFn: func(ctx context.Context, token string) (string, error) {
			if token == "good-token" {
				return "user-789", nil
			}
			return "", errors.New("invalid token")
		},
	}
	mw := NewSessionMiddleware(&mockSessionRepository{}, tokens)

	var capturedUserID string
	var bearer bool
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedUserID, _ = UserIDFromContext(r.Context())
		bearer = IsBearerAuthenticated(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if capturedUserID != "user-789" {
		t.Errorf("userID = %q, want %q", capturedUserID, "user-789")
	}
	if !bearer {
		t.Error("bearer request must be marked as bearer")
	}
}

func TestSessionMiddleware_InvalidBearerToken_Returns401(t *testing.T) {
	mw := NewSessionMiddleware(validSessionRepo("user-123"), &mockTokenVerifier{})

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	// 無効なトークンはCookieが有効でもフォールバックしない
	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer forged")
	req.AddCookie(&http.Cookie{Name: "session_id", Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestSessionMiddleware_BearerWithoutVerifier_Returns401(t *testing.T) {
	mw := NewSessionMiddleware(&mockSessionRepository{}, nil)

	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be called")
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusUnauthorized)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer abc", "abc", true},
		{"Bearer   abc  ", "abc", true},
		{"Bearer ", "", false},
		{"Basic dXNlcjpwYXNz", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if tt.header != "" {
			req.Header.Set("Authorization", tt.header)
		}
		got, ok := bearerToken(req)
		if got != tt.want || ok != tt.ok {
			t.Errorf("bearerToken(%q) = (%q, %v), want (%q, %v)", tt.header, got, ok, tt.want, tt.ok)
		}
	}
}

func TestUserIDFromContext_NoValue_ReturnsError(t *testing.T) {
	_, err := UserIDFromContext(context.Background())
	if err == nil {
		t.Error("expected error for missing user ID in context")
	}
}

func TestUserIDFromContext_ValidValue_ReturnsUserID(t *testing.T) {
	ctx := ContextWithUserID(context.Background(), "user-456")
	userID, err := UserIDFromContext(ctx)
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if userID != "user-456" {
		t.Errorf("userID = %q, want %q", userID, "user-456")
	}
}
