package handler

import (
	"context"
	"net/http"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

// DashboardServiceInterface はダッシュボードハンドラーが必要とするサービスインターフェース。
type DashboardServiceInterface interface {
	GetStatistics(ctx context.Context) (*model.Statistics, error)
}

// DashboardHandler は集計値を返すHTTPハンドラー。
type DashboardHandler struct {
	service DashboardServiceInterface
}

// NewDashboardHandler はDashboardHandlerを生成する。
func NewDashboardHandler(service DashboardServiceInterface) *DashboardHandler {
	return &DashboardHandler{service: service}
}

// statisticsResponse のキーは既存の管理画面が参照する名前に合わせる。
type statisticsResponse struct {
	TotalBooks     int `json:"totalLivros"`
	ActiveUsers    int `json:"totalUsuarios"`
	TotalLoans     int `json:"emprestimosAtivos"`
	AvailableBooks int `json:"livrosDisponiveis"`
	OverdueLoans   int `json:"emprestimosAtrasados"`
}

// GetStatistics は集計値を返す。
// GET /api/dashboard
func (h *DashboardHandler) GetStatistics(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetStatistics(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, statisticsResponse{
		TotalBooks:     stats.TotalBooks,
		ActiveUsers:    stats.ActiveUsers,
		TotalLoans:     stats.TotalLoans,
		AvailableBooks: stats.AvailableBooks,
		OverdueLoans:   stats.OverdueLoans,
	})
}
