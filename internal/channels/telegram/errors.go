package telegram

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-telegram/bot"
)

// ErrorCode classifies Bot API failures.
type ErrorCode string

const (
	ErrCodeConfig      ErrorCode = "CONFIG_ERROR"
	ErrCodeRateLimit   ErrorCode = "RATE_LIMIT_ERROR"
	ErrCodeInvalid     ErrorCode = "INVALID_INPUT"
	ErrCodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// Error is a Bot API failure with a code for logging and retry decisions.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
	// RetryAfter is how long Telegram asked the bot to wait. Set only for
	// flood-control errors.
	RetryAfter time.Duration
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Throttled reports whether the failure was Telegram flood control.
func (e *Error) Throttled() bool { return e.Code == ErrCodeRateLimit }

// ErrConfig reports invalid configuration.
func ErrConfig(message string, err error) *Error {
	return &Error{Code: ErrCodeConfig, Message: message, Err: err}
}

// classify wraps a Bot API error with a code. The library's typed errors
// are preferred; the text is matched for everything else.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var tooMany *bot.TooManyRequestsError
	if errors.As(err, &tooMany) {
		return &Error{
			Code:       ErrCodeRateLimit,
			Message:    op,
			Err:        err,
			RetryAfter: time.Duration(tooMany.RetryAfter) * time.Second,
		}
	}
	code := ErrCodeUnavailable
	switch msg := err.Error(); {
	case errors.Is(err, bot.ErrorTooManyRequests),
		strings.Contains(msg, "Too Many Requests"), strings.Contains(msg, "429"):
		code = ErrCodeRateLimit
	case errors.Is(err, bot.ErrorBadRequest),
		strings.Contains(msg, "Bad Request"), strings.Contains(msg, "400"):
		code = ErrCodeInvalid
	}
	return &Error{Code: code, Message: op, Err: err}
}

// IsRateLimited reports whether err is a Bot API flood-control error.
func IsRateLimited(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrCodeRateLimit
}

// isNotModified matches the error returned when an edit would not change
// the message.
func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
