package xid

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNewIsPrefixedAndNotCatalog(t *testing.T) {
	id := New("manual")
	assert.True(t, strings.HasPrefix(id, "manual-"))
	assert.False(t, IsCatalogID(id))
	assert.NotEqual(t, id, New("manual"))
}

func TestIsCatalogID(t *testing.T) {
	cases := map[string]bool{
		uuid.NewString():                         true,
		"0b8f3a52-6c1e-4d7a-9f4e-2a1b3c4d5e6f":   true,
		"":                                       false,
		"123":                                    false,
		"manual-a1b2c3d4e5f6":                    false,
		"not-a-uuid-but-quite-long-enough-12345": false,
	}
	for id, want := range cases {
		assert.Equal(t, want, IsCatalogID(id), id)
	}
}
