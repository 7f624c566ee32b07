package lcphost

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChecker struct {
	appearAfter int
	calls       int
	err         error
}

func (f *fakeChecker) LinkExists(namespace, name string) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.calls > f.appearAfter, nil
}

func TestWaitAppears(t *testing.T) {
	c := &fakeChecker{appearAfter: 2}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, Wait(ctx, c, "dataplane", "be0", time.Millisecond))
	assert.Equal(t, 3, c.calls)
}

func TestWaitTimeout(t *testing.T) {
	c := &fakeChecker{appearAfter: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := Wait(ctx, c, "", "be0", time.Millisecond)
	assert.ErrorIs(t, err, ErrLinkMissing)
}

func TestWaitError(t *testing.T) {
	boom := errors.New("netlink unavailable")
	err := Wait(context.Background(), &fakeChecker{err: boom}, "", "be0", time.Millisecond)
	assert.ErrorIs(t, err, boom)
}
