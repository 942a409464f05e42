package scoreboard

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation は入力値が不正であることを示す。ストアには到達しない。
	ErrValidation = errors.New("validation error")

	// ErrNotFound は指定された順位にスコアが存在しないことを示す。
	ErrNotFound = errors.New("score not found")
)

// StoreError は永続化層で発生した失敗を表す。
type StoreError struct {
	// Op は失敗した操作名。
	Op string
	// Err は元のエラー。
	Err error
}

// Error はエラーメッセージを返す。
func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *StoreError) Unwrap() error {
	return e.Err
}

// validationError はErrValidationをラップした詳細付きエラーを生成する。
func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
