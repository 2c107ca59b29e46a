package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendNonEmpty(t *testing.T) {
	list := AppendNonEmpty(nil, "request_id", "")
	assert.Empty(t, list)

	list = AppendNonEmpty(list, "request_id", "r-1")
	assert.Equal(t, []any{"request_id", "r-1"}, list)
}
