// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"strings"
	"time"
)

// Loan は利用者1名と蔵書1冊を結ぶ貸出記録を表す。
// Active が true の間は ReturnedAt は nil であり、返却後はその逆になる。
type Loan struct {
	ID           string
	UserID       string
	BookID       string
	CheckoutDate time.Time
	DueDate      time.Time
	ReturnedAt   *time.Time
	FineCents    int64
	Active       bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsReturned は返却済みかどうかを返す。
func (l *Loan) IsReturned() bool {
	return l.ReturnedAt != nil || !l.Active
}

// IsOverdue は指定日時点で返却期限を過ぎた未返却の貸出かどうかを返す。
func (l *Loan) IsOverdue(today time.Time) bool {
	return l.Active && l.ReturnedAt == nil && DateOf(l.DueDate).Before(DateOf(today))
}

// LoanFilter は貸出一覧の絞り込み条件を表す。
type LoanFilter string

const (
	// LoanFilterAll は全件。
	LoanFilterAll LoanFilter = "all"
	// LoanFilterActive は未返却のみ。
	LoanFilterActive LoanFilter = "active"
	// LoanFilterOverdue は延滞中のみ。
	LoanFilterOverdue LoanFilter = "overdue"
)

// ParseLoanFilter は文字列をLoanFilterに変換する。
// 空文字列はLoanFilterAllとして扱う。旧画面の "ativos"、"atrasados" も受け付ける。
func ParseLoanFilter(s string) (LoanFilter, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all", "todos":
		return LoanFilterAll, true
	case "active", "ativos":
		return LoanFilterActive, true
	case "overdue", "atrasados":
		return LoanFilterOverdue, true
	default:
		return "", false
	}
}

// DateOf は時刻をその暦日のUTC 0時に丸める。
// 貸出期間と延滞日数は暦日単位で計算する。
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween は暦日 from から to までの日数を返す。to が前なら負数になる。
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)).Hours() / 24)
}

// FormatBRL はセント単位の金額をレアル表記（例: "R$ 12,00"）に整形する。
func FormatBRL(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%sR$ %d,%02d", sign, cents/100, cents%100)
}
