package xid

import (
	"fmt"

	"github.com/google/uuid"
)

// New returns a prefixed identifier that never parses as a catalog id.
func New(prefix string) string {
	raw := uuid.New()
	return fmt.Sprintf("%s-%x", prefix, raw[:6])
}

// IsCatalogID reports whether id looks like a persisted catalog row key.
func IsCatalogID(id string) bool {
	if len(id) < 32 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}
