package segindex

import (
	"encoding/base64"
	"fmt"
	"strings"

	"tams/internal/timestamp"
)

// EncodeCursor renders a position as an opaque page key.
func EncodeCursor(p Position) string {
	return base64.RawURLEncoding.EncodeToString([]byte(p.Start.String() + "|" + p.ObjectID))
}

// DecodeCursor parses a page key produced by EncodeCursor.
func DecodeCursor(raw string) (Position, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(raw))
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	startText, objectID, ok := strings.Cut(string(decoded), "|")
	if !ok || objectID == "" {
		return Position{}, ErrInvalidCursor
	}
	start, err := timestamp.Parse(startText)
	if err != nil {
		return Position{}, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	return Position{Start: start, ObjectID: objectID}, nil
}

// comparePosition orders by start, then object id.
func comparePosition(a, b Position) int {
	if c := timestamp.Compare(a.Start, b.Start); c != 0 {
		return c
	}
	return strings.Compare(a.ObjectID, b.ObjectID)
}
