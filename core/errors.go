package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return ""
	}
	return err.Err.Error()
}

// Kind classifies failures that end up in front of a user.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindPermission
	KindNetwork
	KindQuotaExceeded
	KindUploadFailed
)

var kindNames = map[Kind]string{
	KindUnknown:       "unknown",
	KindValidation:    "validation_failure",
	KindNotFound:      "not_found",
	KindPermission:    "permission_denied",
	KindNetwork:       "network_failure",
	KindQuotaExceeded: "quota_exceeded",
	KindUploadFailed:  "upload_failed",
}

// user-facing message templates (vi)
var kindMessages = map[Kind]string{
	KindValidation:    "Dữ liệu không hợp lệ. Vui lòng kiểm tra lại.",
	KindNotFound:      "Không tìm thấy dữ liệu yêu cầu.",
	KindPermission:    "Bạn không có quyền thực hiện thao tác này.",
	KindNetwork:       "Lỗi kết nối mạng. Vui lòng kiểm tra kết nối và thử lại.",
	KindQuotaExceeded: "Hệ thống đã vượt quá giới hạn sử dụng. Vui lòng thử lại sau.",
	KindUploadFailed:  "Không thể tải tệp lên. Vui lòng thử lại.",
}

func (k Kind) String() string { return kindNames[k] }

// Message returns the user-facing message of the Kind; empty for KindUnknown.
func (k Kind) Message() string { return kindMessages[k] }

// Error is an error raised with an explicit Kind at the point of failure.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

// E creates a new *Error. `err` may be nil.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Ef creates a new *Error with a formatted message.
func Ef(kind Kind, op, format string, args ...interface{}) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of the first *Error found in err's chain.
// ValidationErrors are reported as KindValidation.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var kerr *Error
	if errors.As(err, &kerr) {
		return kerr.Kind
	}
	var verr *ValidationError
	if errors.As(err, &verr) {
		return KindValidation
	}
	return KindUnknown
}

// IsKind reports whether err is of the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	var s *shutdown
	return errors.As(err, &s)
}
