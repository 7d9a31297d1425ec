// Package logger はslogによるJSON構造化ログの設定を提供する。
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options はログ出力の設定。
type Options struct {
	// Level はdebug, info, warn, errorのいずれか。不明な値はinfoとして扱う。
	Level string
	// File が空でない場合、ログをファイルにも出力しサイズでローテーションする。
	File       string
	MaxSizeMB  int
	MaxAgeDays int
}

// ParseLevel はログレベル名をslog.Levelに変換する。
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup はJSON構造化ログ出力のslog.Loggerを生成して返す。
func Setup(w io.Writer, level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}

// SetupDefault はJSON構造化ログ出力をグローバルロガーとして設定する。
// wがnilの場合はos.Stdoutに出力する。
// opts.Fileが指定された場合はローテーション付きのファイルにも出力し、
// 終了時に閉じるためのio.Closerを返す。ファイル出力がない場合はnilを返す。
func SetupDefault(w io.Writer, opts Options) io.Closer {
	if w == nil {
		w = os.Stdout
	}

	var closer io.Closer
	if opts.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    opts.MaxSizeMB,
			MaxAge:     opts.MaxAgeDays,
			MaxBackups: 3,
			Compress:   true,
		}
		w = io.MultiWriter(w, rotator)
		closer = rotator
	}

	slog.SetDefault(Setup(w, ParseLevel(opts.Level)))
	return closer
}
