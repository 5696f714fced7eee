package recipe

import "errors"

var (
	ErrRecipe  = errors.New("invalid recipe")
	ErrDecode  = errors.New("recipe decode failed")
	ErrMissing = errors.New("recipe field required")
)
