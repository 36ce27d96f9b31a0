// Package pantry holds the client view state: the selected image, the
// ingredient list, the manual input buffer and the recipe list.
//
// Every operation is a pure transformation. It takes a State and returns a
// new one, and never writes into the slices of its input, so a State value
// handed to a reader stays valid after later updates.
package pantry

import "strings"

// Image is a user-selected picture waiting to be sent for detection.
type Image struct {
	Filename    string
	ContentType string
	Data        []byte
}

// State is everything a presentation layer needs to render the page.
type State struct {
	Image       *Image
	Ingredients []string
	ManualInput string
	Recipes     []string
}

// Update is a pure transformation of a State.
type Update func(State) State

// New returns the empty session state.
func New() State {
	return State{
		Ingredients: []string{},
		Recipes:     []string{},
	}
}

// HasImage reports whether an image has been selected.
func (s State) HasImage() bool { return s.Image != nil }

// HasIngredients reports whether the ingredient list is non-empty.
func (s State) HasIngredients() bool { return len(s.Ingredients) > 0 }

// HasRecipes reports whether a recipe lookup has produced results.
func (s State) HasRecipes() bool { return len(s.Recipes) > 0 }

// SelectImage replaces the image reference.
func SelectImage(s State, img Image) State {
	s.Image = &img
	return s
}

// SetManualInput replaces the in-progress text.
func SetManualInput(s State, text string) State {
	s.ManualInput = text
	return s
}

// AddManual appends the trimmed text to the ingredient list and clears the
// manual input buffer. Blank text leaves the state untouched.
func AddManual(s State, text string) State {
	item := strings.TrimSpace(text)
	if item == "" {
		return s
	}
	next := make([]string, len(s.Ingredients), len(s.Ingredients)+1)
	copy(next, s.Ingredients)
	s.Ingredients = append(next, item)
	s.ManualInput = ""
	return s
}

// CommitManualInput adds whatever is in the manual input buffer.
func CommitManualInput(s State) State {
	return AddManual(s, s.ManualInput)
}

// ReplaceFromDetection overwrites the ingredient list with names. The
// contents are not validated and an empty slice yields an empty list.
func ReplaceFromDetection(s State, names []string) State {
	s.Ingredients = clone(names)
	return s
}

// ReplaceRecipes overwrites the recipe list with names.
func ReplaceRecipes(s State, names []string) State {
	s.Recipes = clone(names)
	return s
}

// Detected returns an Update that applies a detection result.
func Detected(names []string) Update {
	names = clone(names)
	return func(s State) State { return ReplaceFromDetection(s, names) }
}

// Recommended returns an Update that applies a recipe lookup result.
func Recommended(names []string) Update {
	names = clone(names)
	return func(s State) State { return ReplaceRecipes(s, names) }
}

func clone(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
