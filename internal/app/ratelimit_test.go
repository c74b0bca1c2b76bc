package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	rl := NewRateLimiter(3, time.Second)

	for i := 0; i < 3; i++ {
		assert.True(t, rl.Allow("s1", t0))
	}
	assert.False(t, rl.Allow("s1", t0.Add(500*time.Millisecond)))
	assert.True(t, rl.Allow("s2", t0), "limits are per connection")
	assert.True(t, rl.Allow("s1", t0.Add(1001*time.Millisecond)))
}

func TestRateLimiter_Prune(t *testing.T) {
	rl := NewRateLimiter(10, time.Second)
	rl.Allow("old", t0)
	rl.Allow("new", t0.Add(2*time.Second))

	assert.Equal(t, 1, rl.Prune(t0.Add(2500*time.Millisecond)))
	assert.Equal(t, 1, rl.Len())

	rl.Forget("new")
	assert.Zero(t, rl.Len())
}

func TestPolicyByName(t *testing.T) {
	assert.Equal(t, KickMember, PolicyByName("kick").OnBackPressure("s"))
	assert.Equal(t, DropFrame, PolicyByName("").OnBackPressure("s"))
}
