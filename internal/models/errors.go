package models

import "errors"

var (
	ErrInvalidSymbol    = errors.New("invalid symbol")
	ErrInvalidScore     = errors.New("invalid score")
	ErrInvalidTimestamp = errors.New("invalid timestamp")
	ErrInvalidUserID    = errors.New("invalid user ID")
	ErrInvalidChannelID = errors.New("invalid channel ID")
	ErrNoData           = errors.New("no data")
	ErrScanInProgress   = errors.New("scan already in progress")
	ErrSnapshotExpired  = errors.New("snapshot expired")
)
