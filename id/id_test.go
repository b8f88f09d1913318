package id

import (
	"testing"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// not parallel: NewAt with an old time resets the monotonic sequence
func TestNewAtIsSortable(t *testing.T) {
	prev := NewAt(time.Now())
	for i := 0; i < 1000; i++ {
		next := NewAt(time.Now())
		require.Less(t, prev, next)
		prev = next
	}
}

func TestNewAtEncodesTime(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 3, 4, 5, 6, 7, 8_000_000, time.UTC)
	v, err := ulid.ParseStrict(NewAt(ts))
	require.NoError(t, err)
	assert.True(t, ts.Equal(ulid.Time(v.Time()).UTC()))

	assert.Less(t, NewAt(ts), NewAt(ts.Add(time.Millisecond)))
}
