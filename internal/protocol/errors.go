package protocol

import "errors"

var (
	ErrProtocol = errors.New("protocol error")
	ErrEncode   = errors.New("encode failed")
	ErrDecode   = errors.New("decode failed")
)
