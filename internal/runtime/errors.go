package runtime

import "errors"

var (
	ErrRuntime        = errors.New("runtime error")
	ErrEmptyIndex     = errors.New("empty image index")
	ErrEmptyArchive   = errors.New("archive contains no image")
	ErrMultipleImages = errors.New("archive contains more than one image")
	ErrReference      = errors.New("invalid image reference")
	ErrCommand        = errors.New("container command failed")
)
