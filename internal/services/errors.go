package services

import "errors"

var (
	ErrInvalidDomain  = errors.New("invalid domain name")
	ErrNoExpiry       = errors.New("no expiration date found")
	ErrNoNotifier     = errors.New("no notifier for channel")
	ErrChannelOff     = errors.New("channel is not enabled")
	ErrUnknownChecker = errors.New("unknown check kind")
)
