package dashboard

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Lua-Sdy/bibliotech-Trabalho-Final/internal/model"
)

type stubBooks struct {
	total, available int
	err              error
}

func (s *stubBooks) Count(_ context.Context) (int, error)          { return s.total, s.err }
func (s *stubBooks) CountAvailable(_ context.Context) (int, error) { return s.available, s.err }

type stubUsers struct{ active int }

func (s *stubUsers) CountActive(_ context.Context) (int, error) { return s.active, nil }

type stubLoans struct {
	total, overdue int
	today          time.Time
}

func (s *stubLoans) Count(_ context.Context) (int, error) { return s.total, nil }
func (s *stubLoans) CountOverdue(_ context.Context, today time.Time) (int, error) {
	s.today = today
	return s.overdue, nil
}

func TestGetStatistics(t *testing.T) {
	now := time.Date(2025, 11, 20, 12, 0, 0, 0, time.UTC)
	loans := &stubLoans{total: 7, overdue: 2}
	svc := NewService(&stubBooks{total: 10, available: 8}, &stubUsers{active: 5}, loans)
	svc.now = func() time.Time { return now }

	got, err := svc.GetStatistics(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &model.Statistics{
		TotalBooks:     10,
		ActiveUsers:    5,
		TotalLoans:     7,
		AvailableBooks: 8,
		OverdueLoans:   2,
	}, got)
	assert.Equal(t, now, loans.today)
}

func TestGetStatistics_PropagatesError(t *testing.T) {
	svc := NewService(&stubBooks{err: errors.New("db down")}, &stubUsers{}, &stubLoans{})

	_, err := svc.GetStatistics(context.Background())
	assert.Error(t, err)
}
