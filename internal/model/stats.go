package model

// Statistics はダッシュボードに表示する集計値。
type Statistics struct {
	TotalBooks     int
	ActiveUsers    int
	TotalLoans     int
	AvailableBooks int
	OverdueLoans   int
}
