package domain

import "errors"

var (
	ErrInvalidChoice      = errors.New("invalid choice")
	ErrInvalidCount       = errors.New("invalid count")
	ErrMalformedHoursData = errors.New("malformed hours data")
	ErrStoreUnavailable   = errors.New("store unavailable")
)

// RejectReason is the machine-readable reason a vote was not counted.
// The caller decides user-facing messaging.
type RejectReason string

const (
	RejectNone          RejectReason = ""
	RejectInvalidChoice RejectReason = "InvalidChoice"
	RejectRateLimited   RejectReason = "RateLimited"
	RejectAlreadyVoted  RejectReason = "AlreadyVoted"
)
