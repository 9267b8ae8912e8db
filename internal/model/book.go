// Package model はドメインモデルを定義する。
package model

import "time"

// 出版年の許容範囲。
const (
	MinPublicationYear = 1000
	MaxPublicationYear = 2100
)

// Book は蔵書を表す。
// AvailableCopies は常に 0 <= AvailableCopies <= TotalCopies を満たす。
type Book struct {
	ID              string
	Title           string
	Author          string
	ISBN            string
	Publisher       string
	Year            int
	TotalCopies     int
	AvailableCopies int
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAvailable は貸出可能な在庫があるかどうかを返す。
func (b *Book) IsAvailable() bool {
	return b.AvailableCopies > 0
}

// BookQuery は蔵書検索の条件。
// Title、Authorは大文字小文字を区別しない部分一致。空文字列の条件は無視する。
type BookQuery struct {
	Title         string
	Author        string
	AvailableOnly bool
}
