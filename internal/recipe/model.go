package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"sort"
	"strings"
)

// Detection is a cached ingredient detection for one image.
type Detection struct {
	ImageHash   string   `json:"image_hash" db:"image_hash"`
	Filename    string   `json:"filename" db:"filename"`
	Ingredients []string `json:"ingredients"`
}

// Suggestion is a cached recipe lookup for one ingredient set.
type Suggestion struct {
	IngredientsKey string   `json:"ingredients_key" db:"ingredients_key"`
	Ingredients    []string `json:"ingredients"`
	Recipes        []string `json:"recipes"`
}

// GenerateImageHash calculates the SHA256 hash of the image data.
func GenerateImageHash(imageData []byte) string {
	hash := sha256.Sum256(imageData)
	return hex.EncodeToString(hash[:])
}

// IngredientsKey identifies an ingredient set regardless of order and case.
func IngredientsKey(ingredients []string) string {
	norm := make([]string, 0, len(ingredients))
	for _, in := range ingredients {
		norm = append(norm, strings.ToLower(strings.TrimSpace(in)))
	}
	sort.Strings(norm)
	hash := sha256.Sum256([]byte(strings.Join(norm, "\n")))
	return hex.EncodeToString(hash[:])
}

// Union concatenates the lists, trimming entries and dropping blanks and
// case-insensitive repeats. The first spelling of each entry is kept.
func Union(lists ...[]string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, list := range lists {
		for _, item := range list {
			item = strings.TrimSpace(item)
			key := strings.ToLower(item)
			if item == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, item)
		}
	}
	return out
}

var listMarker = regexp.MustCompile(`^(?:[-*•]+|\d+[.)])\s*`)

// ParseList turns model output with one entry per line into a list. Bullet
// and number markers, markdown emphasis, heading lines ending in a colon and
// blank lines are dropped.
func ParseList(text string) []string {
	out := []string{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		line = listMarker.ReplaceAllString(line, "")
		line = strings.ReplaceAll(line, "**", "")
		line = strings.Trim(line, "*_`# ")
		if line == "" || strings.HasSuffix(line, ":") {
			continue
		}
		out = append(out, line)
	}
	return out
}
