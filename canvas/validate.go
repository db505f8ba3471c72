package canvas

import (
	"errors"
	"regexp"
	"strings"
)

// Both 3- and 6-digit hex colors are accepted, matching what drawing
// frontends commonly emit.
var hexColorRegex = regexp.MustCompile(`^#(?:[0-9A-Fa-f]{3}|[0-9A-Fa-f]{6})$`)

const (
	minSize         = 1
	maxSize         = 100
	maxStrokePoints = 2048
	maxTextLength   = 2000

	// DefaultColor is the ink used when a payload carries no usable color.
	DefaultColor = "#000000"
	// AnonymousUserId stamps elements from unauthenticated sessions.
	AnonymousUserId = "anonymous"

	defaultFontSize = 16
)

// ValidatePath rejects malformed stroke payloads received from remote
// participants. Local commits are normalized instead of rejected.
func ValidatePath(p Path) error {
	if p.Id == "" {
		return errors.New("missing element id")
	}
	if p.Tool < 0 || p.Tool >= ToolCount {
		return errors.New("invalid tool")
	}
	if !hexColorRegex.MatchString(p.Color) {
		return errors.New("invalid color")
	}
	if p.Size < minSize || p.Size > maxSize {
		return errors.New("invalid size")
	}
	if len(p.Points) == 0 {
		return errors.New("empty stroke")
	}
	if len(p.Points) > maxStrokePoints {
		return errors.New("stroke too long")
	}
	return nil
}

func ValidateShape(s Shape) error {
	if s.Id == "" {
		return errors.New("missing element id")
	}
	if s.Kind < 0 || s.Kind >= ShapeKindCount {
		return errors.New("invalid shape kind")
	}
	if !hexColorRegex.MatchString(s.Color) {
		return errors.New("invalid color")
	}
	if s.Size < minSize || s.Size > maxSize {
		return errors.New("invalid size")
	}
	return nil
}

func ValidateText(t Text) error {
	if t.Id == "" {
		return errors.New("missing element id")
	}
	if !hexColorRegex.MatchString(t.Color) {
		return errors.New("invalid color")
	}
	if t.FontSize <= 0 || t.FontSize > maxSize {
		return errors.New("invalid font size")
	}
	if len(t.Content) > maxTextLength {
		return errors.New("text too long")
	}
	return nil
}

// NormalizeColor substitutes the default ink for unusable colors.
func NormalizeColor(c string) string {
	if !hexColorRegex.MatchString(c) {
		return DefaultColor
	}
	return c
}

// NormalizeSize clamps a stroke size into the allowed range.
func NormalizeSize(s float64) float64 {
	if s < minSize {
		return minSize
	}
	if s > maxSize {
		return maxSize
	}
	return s
}

// NormalizeFontSize clamps a font size, falling back to a readable default.
func NormalizeFontSize(s float64) float64 {
	if s <= 0 {
		return defaultFontSize
	}
	if s > maxSize {
		return maxSize
	}
	return s
}

// NormalizeUserId substitutes the anonymous id for blank user ids.
func NormalizeUserId(id string) string {
	if strings.TrimSpace(id) == "" {
		return AnonymousUserId
	}
	return id
}
