package notifications

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatEnded(t *testing.T) {
	t.Run("no entrants", func(t *testing.T) {
		got := FormatEnded("Nitro", nil, true, false)
		assert.Equal(t, "The giveaway for **Nitro** has ended, but no one entered.", got)
	})

	t.Run("no eligible winner", func(t *testing.T) {
		got := FormatEnded("Nitro", nil, false, true)
		assert.Equal(t, "The giveaway for **Nitro** has ended, but no eligible winner could be drawn.", got)
	})

	t.Run("single winner", func(t *testing.T) {
		got := FormatEnded("Nitro", []int64{42}, false, false)
		assert.Equal(t, "The giveaway for **Nitro** has ended! Winner: <@42>. Congratulations!", got)
	})

	t.Run("multiple winners", func(t *testing.T) {
		got := FormatEnded("Nitro", []int64{1, 2}, false, false)
		assert.Equal(t, "The giveaway for **Nitro** has ended! Winners: <@1>, <@2>. Congratulations!", got)
	})

	t.Run("reroll", func(t *testing.T) {
		got := FormatEnded("Nitro", []int64{7}, false, true)
		assert.Equal(t, "Rerolled! The new winner of **Nitro** is <@7>. Congratulations!", got)
	})
}

func TestFormatMentions(t *testing.T) {
	assert.Equal(t, "<@1>, <@2>, <@3>", FormatMentions([]int64{1, 2, 3}))
	assert.Equal(t, "", FormatMentions(nil))
}
