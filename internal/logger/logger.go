// Package logger はJSON構造化ログの出力先とレベルを設定する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// AppName は全ログ行に付与するアプリケーション名。
const AppName = "bibliotech"

// ParseLevel はLOG_LEVELの値をslog.Levelに変換する。
// 未設定・不明な値はINFOとして扱う。
func ParseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup はwに出力するJSON構造化ロガーを生成する。
// すべての行に app 属性を付ける。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler).With(slog.String("app", AppName))
}

// SetupDefault はJSON構造化ロガーをグローバルロガーとして設定する。
// wがnilの場合はos.Stdoutに出力する。
func SetupDefault(w io.Writer, level slog.Level) {
	if w == nil {
		w = os.Stdout
	}
	slog.SetDefault(Setup(w, level))
}
