package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidateWinnerCount(t *testing.T) {
	assert.NoError(t, ValidateWinnerCount(1))
	assert.NoError(t, ValidateWinnerCount(20))
	assert.Error(t, ValidateWinnerCount(0))
	assert.Error(t, ValidateWinnerCount(-1))
	assert.Error(t, ValidateWinnerCount(21))
}

func TestValidatePrize(t *testing.T) {
	assert.NoError(t, ValidatePrize("Nitro"))
	assert.NoError(t, ValidatePrize(strings.Repeat("x", 256)))
	assert.Error(t, ValidatePrize(""))
	assert.Error(t, ValidatePrize("   "))
	assert.Error(t, ValidatePrize(strings.Repeat("x", 257)))
}

func TestValidateDuration(t *testing.T) {
	assert.NoError(t, ValidateDuration(10*time.Second))
	assert.NoError(t, ValidateDuration(30*24*time.Hour))
	assert.Error(t, ValidateDuration(9*time.Second))
	assert.Error(t, ValidateDuration(30*24*time.Hour+time.Second))
}

func TestHasRole(t *testing.T) {
	t.Run("zero required role means unrestricted", func(t *testing.T) {
		assert.True(t, HasRole(0, nil))
		assert.True(t, HasRole(0, []int64{1, 2}))
	})

	t.Run("matches against held roles", func(t *testing.T) {
		assert.True(t, HasRole(5, []int64{3, 5, 7}))
		assert.False(t, HasRole(5, []int64{3, 7}))
		assert.False(t, HasRole(5, nil))
	})
}
