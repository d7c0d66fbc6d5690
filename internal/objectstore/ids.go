package objectstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ValidateID enforces the identifier rules shared by every entry point:
// 1-255 bytes, no "..", no path separators.
func ValidateID(id string) error {
	switch {
	case id == "":
		return fmt.Errorf("%w: empty", ErrInvalidObjectID)
	case len(id) > maxObjectIDLength:
		return fmt.Errorf("%w: longer than %d characters", ErrInvalidObjectID, maxObjectIDLength)
	case id == ".":
		return fmt.Errorf("%w: %q", ErrInvalidObjectID, id)
	case strings.Contains(id, ".."), strings.ContainsAny(id, "/\\\x00"):
		return fmt.Errorf("%w: %q", ErrInvalidObjectID, id)
	}
	return nil
}

// GenerateID returns a fresh identifier: hex unix seconds, a dash, and a
// random uuid without separators. The time prefix keeps recent uploads close
// together in listings.
func GenerateID(now time.Time) string {
	return fmt.Sprintf("%x-%s", now.Unix(), strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// shardDir returns the relative directory holding id.
func shardDir(id string) string {
	if len(id) < 4 {
		return "misc"
	}
	return id[0:2] + "/" + id[2:4]
}
