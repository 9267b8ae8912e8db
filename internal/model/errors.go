// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, catalog, loan, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Is はエラーコードが一致する場合にtrueを返す。
// errors.Is(err, model.ErrBookUnavailable) のようにコード単位で判定するために使用する。
func (e *APIError) Is(target error) bool {
	var t *APIError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// 定義済みエラーコード
const (
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeDuplicateISBN      = "DUPLICATE_ISBN"
	ErrCodeDuplicateEmail     = "DUPLICATE_EMAIL"
	ErrCodeDuplicateCPF       = "DUPLICATE_CPF"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeActiveLoans        = "ACTIVE_LOANS"
	ErrCodeBookUnavailable    = "BOOK_UNAVAILABLE"
	ErrCodeAlreadyReturned    = "ALREADY_RETURNED"
	ErrCodeInactiveUser       = "INACTIVE_USER"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeAccessDenied       = "ACCESS_DENIED"
)

// errors.Is の比較対象として使うセンチネル。コードのみを持つ。
var (
	ErrValidation         = &APIError{Code: ErrCodeValidation}
	ErrDuplicateISBN      = &APIError{Code: ErrCodeDuplicateISBN}
	ErrDuplicateEmail     = &APIError{Code: ErrCodeDuplicateEmail}
	ErrDuplicateCPF       = &APIError{Code: ErrCodeDuplicateCPF}
	ErrNotFound           = &APIError{Code: ErrCodeNotFound}
	ErrActiveLoans        = &APIError{Code: ErrCodeActiveLoans}
	ErrBookUnavailable    = &APIError{Code: ErrCodeBookUnavailable}
	ErrAlreadyReturned    = &APIError{Code: ErrCodeAlreadyReturned}
	ErrInactiveUser       = &APIError{Code: ErrCodeInactiveUser}
	ErrInvalidCredentials = &APIError{Code: ErrCodeInvalidCredentials}
	ErrAccessDenied       = &APIError{Code: ErrCodeAccessDenied}
)

// NewValidationError は入力値の検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Corrija os campos destacados e tente novamente.",
	}
}

// NewDuplicateISBNError はISBN重複エラーを生成する。
func NewDuplicateISBNError(isbn string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateISBN,
		Message:  fmt.Sprintf("ISBN já cadastrado: %s", isbn),
		Category: "catalog",
		Action:   "Verifique o ISBN ou edite o livro já existente.",
	}
}

// NewDuplicateEmailError はメールアドレス重複エラーを生成する。
func NewDuplicateEmailError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  "Email já cadastrado",
		Category: "validation",
		Action:   "Informe outro email ou edite o usuário existente.",
	}
}

// NewDuplicateCPFError はCPF重複エラーを生成する。
func NewDuplicateCPFError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateCPF,
		Message:  "CPF já cadastrado",
		Category: "validation",
		Action:   "Informe outro CPF ou edite o usuário existente.",
	}
}

// NewNotFoundError は対象リソースが存在しない場合のエラーを生成する。
// resourceには "Livro"、"Usuário"、"Empréstimo" などの表示名を渡す。
func NewNotFoundError(resource, id string) *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("%s não encontrado: %s", resource, id),
		Category: "catalog",
		Action:   "Verifique o identificador informado.",
	}
}

// NewActiveLoansError は有効な貸出が残っているため削除できない場合のエラーを生成する。
func NewActiveLoansError(resource string) *APIError {
	return &APIError{
		Code:     ErrCodeActiveLoans,
		Message:  fmt.Sprintf("Não é possível excluir %s com empréstimos ativos", resource),
		Category: "loan",
		Action:   "Registre a devolução dos empréstimos ativos antes de excluir.",
	}
}

// NewBookUnavailableError は貸出可能な在庫がない場合のエラーを生成する。
func NewBookUnavailableError() *APIError {
	return &APIError{
		Code:     ErrCodeBookUnavailable,
		Message:  "Livro indisponível para empréstimo",
		Category: "loan",
		Action:   "Aguarde a devolução de um exemplar ou escolha outro livro.",
	}
}

// NewAlreadyReturnedError は返却済みの貸出を再度返却しようとした場合のエラーを生成する。
func NewAlreadyReturnedError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyReturned,
		Message:  "Empréstimo já foi devolvido",
		Category: "loan",
		Action:   "Atualize a lista de empréstimos.",
	}
}

// NewInactiveUserError は無効化されたユーザーに対する操作のエラーを生成する。
func NewInactiveUserError() *APIError {
	return &APIError{
		Code:     ErrCodeInactiveUser,
		Message:  "Usuário inativo",
		Category: "auth",
		Action:   "Procure a administração da biblioteca para reativar o cadastro.",
	}
}

// NewInvalidCredentialsError は認証情報が一致しない場合のエラーを生成する。
// メールアドレスとパスワードのどちらが誤っているかは区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  "Email ou senha inválidos",
		Category: "auth",
		Action:   "Confira o email e a senha e tente novamente.",
	}
}

// NewAccessDeniedError は権限のないロールによる操作のエラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "Acesso restrito à equipe da biblioteca",
		Category: "auth",
		Action:   "Entre com uma conta de bibliotecário ou administrador.",
	}
}
