// Package scanerr defines the tagged error model shared by every pipeline
// stage. Each error carries an explicit kind so callers can match on
// behavior rather than concrete types.
package scanerr

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindNetwork    Kind = "network"
	KindTimeout    Kind = "timeout"
	KindAuth       Kind = "auth"
	KindQuota      Kind = "quota"
	KindParsing    Kind = "parsing"
	KindLowQuality Kind = "low_quality_input"
	KindCancelled  Kind = "user_cancelled"
	KindUnknown    Kind = "unknown"
)

// Error is a stage-tagged pipeline failure.
type Error struct {
	Kind    Kind
	Stage   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s stage: %s: %s", e.Stage, e.Kind, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Retryable reports whether retrying the operation makes sense for this
// error kind. Only transient transport failures qualify.
func (e *Error) Retryable() bool {
	return e.Kind == KindNetwork || e.Kind == KindTimeout
}

// New builds an error with an explicit kind and message.
func New(kind Kind, stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Wrap tags an underlying error with a kind and stage.
func Wrap(kind Kind, stage string, err error) *Error {
	return &Error{Kind: kind, Stage: stage, Err: err}
}

// KindOf classifies an arbitrary error. Context expiry maps to timeout and
// cancellation kinds; net errors map to network; anything else unknown.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCancelled
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUnknown
}

// IsKind reports whether err classifies as kind k.
func IsKind(err error, k Kind) bool {
	return KindOf(err) == k
}

// Retryable reports whether err's kind is worth retrying.
func Retryable(err error) bool {
	k := KindOf(err)
	return k == KindNetwork || k == KindTimeout
}

// UserMessage returns the human-readable message for an error kind, shown
// at the service boundary alongside the retryable flag.
func UserMessage(k Kind) string {
	switch k {
	case KindNetwork:
		return "네트워크 연결을 확인한 뒤 다시 시도해 주세요."
	case KindTimeout:
		return "분석 시간이 초과되었습니다. 다시 시도해 주세요."
	case KindAuth:
		return "인증 정보가 올바르지 않습니다."
	case KindQuota:
		return "요청 한도를 초과했습니다. 잠시 후 이용해 주세요."
	case KindParsing:
		return "문서를 해석하지 못했습니다."
	case KindLowQuality:
		return "이미지 품질이 낮아 인식할 수 없습니다."
	case KindCancelled:
		return "요청이 취소되었습니다."
	default:
		return "알 수 없는 오류가 발생했습니다."
	}
}
