// SPDX-License-Identifier: GPL-3.0-or-later

package closepool

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolClosesBackward(t *testing.T) {
	pool := &Pool{}

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		pool.AddFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	require.NoError(t, pool.Close())
	assert.Equal(t, []string{"third", "second", "first"}, order)
}

func TestPoolJoinsErrors(t *testing.T) {
	pool := &Pool{}

	errA := errors.New("listener close failed")
	errB := errors.New("server close failed")
	pool.AddFunc("a", func() error { return errA })
	pool.AddFunc("b", func() error { return nil })
	pool.AddFunc("c", func() error { return errB })

	err := pool.Close()
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
}

func TestPoolCloseIsIdempotent(t *testing.T) {
	pool := &Pool{}

	calls := 0
	pool.AddFunc("once", func() error {
		calls++
		return nil
	})

	require.NoError(t, pool.Close())
	require.NoError(t, pool.Close())
	assert.Equal(t, 1, calls)
}

func TestPoolZeroValue(t *testing.T) {
	pool := &Pool{}
	assert.NoError(t, pool.Close())
}
