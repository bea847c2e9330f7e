package domain

import (
	"errors"
	"fmt"
)

// Sentinels returned by stores and upstream clients. Services translate these
// into tagged errors.
var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
)

// ErrorKind classifies an error for the HTTP boundary and for callers that
// need to decide whether a failure is fatal to their own operation.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindWalletNotFound
	KindWalletAlreadyExists
	KindWalletGeneric
	KindNoPriceData
	KindInvalidInput
	KindAssetNotFound
	KindUpstreamUnavailable
)

var kindNames = map[ErrorKind]string{
	KindUnknown:             "unknown",
	KindWalletNotFound:      "wallet_not_found",
	KindWalletAlreadyExists: "wallet_already_exists",
	KindWalletGeneric:       "wallet_error",
	KindNoPriceData:         "no_price_data",
	KindInvalidInput:        "invalid_input",
	KindAssetNotFound:       "asset_not_found",
	KindUpstreamUnavailable: "upstream_unavailable",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is a tagged error carrying an ErrorKind. Message is safe to show to
// API clients; Err, when set, is the underlying cause and is only logged.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a tagged error with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError builds a tagged error around cause.
func WrapError(kind ErrorKind, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// MessageOf returns the client-facing message of the first *Error in err's
// chain, or fallback when err carries no tag.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return fallback
}

// ErrEmptyAssetList is returned by wallet evaluation when no assets are given.
var ErrEmptyAssetList = &Error{Kind: KindWalletGeneric, Message: "asset list cannot be empty"}
