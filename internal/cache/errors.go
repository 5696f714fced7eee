package cache

import "errors"

var (
	ErrCache = errors.New("dependency cache failed")
	ErrMiss  = errors.New("dependency cache miss")
	ErrKey   = errors.New("cache key computation failed")
)
