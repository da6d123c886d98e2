package store

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a prefixed identifier such as BILL-1F0C2D9A6B7E4C51.
func NewID(prefix string) string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return prefix + "-" + strings.ToUpper(raw[:16])
}
