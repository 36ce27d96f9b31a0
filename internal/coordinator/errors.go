package coordinator

import "errors"

// Precondition errors. They are reported before any network attempt.
var (
	ErrNoImage       = errors.New("no image selected")
	ErrNoIngredients = errors.New("no ingredients to look up recipes with")
)

// Transport and protocol failures collapse into one of these.
var (
	ErrDetectionFailed = errors.New("ingredient detection failed")
	ErrRecipesFailed   = errors.New("recipe lookup failed")
)

// IsPrecondition reports whether err was raised before the network was
// touched.
func IsPrecondition(err error) bool {
	return errors.Is(err, ErrNoImage) || errors.Is(err, ErrNoIngredients)
}
