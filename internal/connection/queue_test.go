package connection

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessageQueue_FlushOrder(t *testing.T) {
	q := newMessageQueue(0)
	for _, s := range []string{"a", "b", "c"} {
		assert.False(t, q.enqueue(outbound{Type: s, Frame: []byte(s)}))
	}

	var sent []string
	n, err := q.flush(func(b []byte) error {
		sent = append(sent, string(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, []string{"a", "b", "c"}, sent)
	assert.Equal(t, 0, q.len())
}

func TestMessageQueue_FlushStopsOnError(t *testing.T) {
	q := newMessageQueue(0)
	q.enqueue(outbound{Frame: []byte("a")})
	q.enqueue(outbound{Frame: []byte("b")})
	q.enqueue(outbound{Frame: []byte("c")})

	n, err := q.flush(func(b []byte) error {
		if string(b) == "b" {
			return errors.New("write failed")
		}
		return nil
	})
	assert.Error(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 2, q.len())

	var rest []string
	_, err = q.flush(func(b []byte) error {
		rest = append(rest, string(b))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, rest)
}

func TestMessageQueue_Limit(t *testing.T) {
	q := newMessageQueue(2)
	assert.False(t, q.enqueue(outbound{Frame: []byte("a")}))
	assert.False(t, q.enqueue(outbound{Frame: []byte("b")}))
	assert.True(t, q.enqueue(outbound{Frame: []byte("c")}))
	assert.Equal(t, 2, q.len())
	assert.Equal(t, int64(1), q.dropped())
}
