package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLockOrder(t *testing.T) {
	// The same pair yields the same order regardless of who won.
	f, s := lockOrder("ETH", "BTC")
	assert.Equal(t, "BTC", f)
	assert.Equal(t, "ETH", s)

	f, s = lockOrder("BTC", "ETH")
	assert.Equal(t, "BTC", f)
	assert.Equal(t, "ETH", s)
}
