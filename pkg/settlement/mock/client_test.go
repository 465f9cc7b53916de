package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inertialabsxyz/movement/pkg/settlement"
)

func TestClient_AutoAccept(t *testing.T) {
	c := NewClient()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accepted, _, err := c.StreamAccepted(ctx)
	require.NoError(t, err)

	com := settlement.NewCommitment(4, []byte("b"), []byte("s"))
	require.NoError(t, c.PostCommitment(ctx, com))

	select {
	case got := <-accepted:
		assert.True(t, com.Matches(got))
	case <-time.After(time.Second):
		t.Fatal("commitment not accepted")
	}
	assert.Equal(t, []settlement.Commitment{com}, c.Posted())
}

func TestClient_StreamClosesOnCancel(t *testing.T) {
	c := NewClient()
	ctx, cancel := context.WithCancel(context.Background())

	accepted, errs, err := c.StreamAccepted(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-accepted:
			return !ok
		default:
			return false
		}
	}, time.Second, time.Millisecond)
	_, ok := <-errs
	assert.False(t, ok)
}

func TestClient_Closed(t *testing.T) {
	c := NewClient()
	require.NoError(t, c.Close())

	err := c.PostCommitment(context.Background(), settlement.NewCommitment(1, nil, nil))
	require.ErrorIs(t, err, ErrClosed)
	_, _, err = c.StreamAccepted(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}
