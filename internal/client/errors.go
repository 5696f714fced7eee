package client

import "errors"

var (
	ErrClient     = errors.New("client error")
	ErrNotRunning = errors.New("daemon is not running")
	ErrDaemon     = errors.New("daemon returned an error")
)
