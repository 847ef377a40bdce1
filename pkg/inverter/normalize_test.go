package inverter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripInternal(t *testing.T) {
	t.Run("StripsUnderscoreKeys", func(t *testing.T) {
		out := StripInternal(map[string]any{
			"StateOfCharge_Relative": 55.5,
			"_vendorDebug":           "raw",
			"_":                      1,
		})
		assert.Equal(t, map[string]any{"StateOfCharge_Relative": 55.5}, out)
	})

	t.Run("EmptyMap", func(t *testing.T) {
		assert.Equal(t, map[string]any{}, StripInternal(map[string]any{}))
	})

	t.Run("NonMapPassthrough", func(t *testing.T) {
		assert.Equal(t, "not a map", StripInternal("not a map"))
		assert.Equal(t, []any{1, 2}, StripInternal([]any{1, 2}))
		assert.Nil(t, StripInternal(nil))
	})
}
