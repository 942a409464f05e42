// Package logging はzapロガーの生成を提供する。
package logging

import (
	"fmt"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// FormatJSON は本番向けのJSON出力形式。
	FormatJSON = "json"
	// FormatConsole は開発向けの人間が読みやすい出力形式。
	FormatConsole = "console"
)

// New は指定されたログレベルと出力形式でzapロガーを生成する。
// levelは "debug", "info", "warn", "error" のいずれか。
func New(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("ログレベルが不正です: %w", err)
	}

	var cfg zap.Config
	switch format {
	case FormatConsole:
		cfg = zap.NewDevelopmentConfig()
	case FormatJSON, "":
		cfg = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("ログ形式が不正です: %q", format)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("ロガーの構築に失敗: %w", err)
	}
	return logger, nil
}
