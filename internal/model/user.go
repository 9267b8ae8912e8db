// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Role は利用者区分を表す。定義済みの値以外は取り得ない。
type Role string

const (
	RoleStudent   Role = "STUDENT"
	RoleTeacher   Role = "TEACHER"
	RoleStaff     Role = "STAFF"
	RoleLibrarian Role = "LIBRARIAN"
	RoleAdmin     Role = "ADMIN"
)

// roleAliases は旧画面で使われていたポルトガル語の区分名。
var roleAliases = map[string]Role{
	"ALUNO":         RoleStudent,
	"PROFESSOR":     RoleTeacher,
	"FUNCIONARIO":   RoleStaff,
	"FUNCIONÁRIO":   RoleStaff,
	"BIBLIOTECARIO": RoleLibrarian,
	"BIBLIOTECÁRIO": RoleLibrarian,
	"ADMINISTRADOR": RoleAdmin,
}

// ParseRole は文字列をRoleに変換する。大文字小文字と前後の空白は無視する。
// 未定義の値の場合はfalseを返す。
func ParseRole(s string) (Role, bool) {
	v := strings.ToUpper(strings.TrimSpace(s))
	switch Role(v) {
	case RoleStudent, RoleTeacher, RoleStaff, RoleLibrarian, RoleAdmin:
		return Role(v), true
	}
	if r, ok := roleAliases[v]; ok {
		return r, true
	}
	return "", false
}

// Valid はRoleが定義済みの値かどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleTeacher, RoleStaff, RoleLibrarian, RoleAdmin:
		return true
	}
	return false
}

// IsStaff は管理コンソールにログインできるロールかどうかを返す。
func (r Role) IsStaff() bool {
	return r == RoleStaff || r == RoleLibrarian || r == RoleAdmin
}

// User はライブラリの利用者を表す。
// CPFは数字11桁、Emailは小文字に正規化した値を保持する。
type User struct {
	ID           string
	Name         string
	Email        string
	CPF          string
	PasswordHash string
	Active       bool
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
