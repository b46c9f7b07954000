package notify

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slowNotifier struct {
	delay time.Duration
}

func (n *slowNotifier) Send(ctx context.Context, channel Channel, recipient, content string) (*Receipt, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(n.delay):
		return &Receipt{DeliveredAt: time.Now()}, nil
	}
}

func TestWithTimeoutPassesThroughFastSends(t *testing.T) {
	n := WithTimeout(&slowNotifier{delay: time.Millisecond}, time.Second)

	receipt, err := n.Send(context.Background(), ChannelSMS, "+1555", "hi")
	require.NoError(t, err)
	assert.False(t, receipt.DeliveredAt.IsZero())
}

func TestWithTimeoutReportsDeadlineAsDeliveryError(t *testing.T) {
	n := WithTimeout(&slowNotifier{delay: time.Second}, 10*time.Millisecond)

	_, err := n.Send(context.Background(), ChannelEmail, "a@b.c", "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDeliveryTimeout)

	var delivErr *DeliveryError
	require.ErrorAs(t, err, &delivErr)
	assert.Equal(t, "timeout", delivErr.Reason)
}

func TestLogNotifierHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLogNotifier(nil).Send(ctx, ChannelSMS, "+1555", "hi")
	assert.Error(t, err)
}
