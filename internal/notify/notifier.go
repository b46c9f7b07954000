package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/scheduling-engine/pkg/logging"
)

type Channel string

const (
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

var ErrDeliveryTimeout = errors.New("notification delivery timed out")

// DeliveryError wraps a channel failure so callers can record the reason
// without aborting the rest of a dispatch batch.
type DeliveryError struct {
	Reason string
	Err    error
}

func (e *DeliveryError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery failed: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("delivery failed: %s", e.Reason)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// Receipt acknowledges a delivered notification.
type Receipt struct {
	ProviderMessageID string
	DeliveredAt       time.Time
}

// Notifier is the external notification channel collaborator. Real SMS and
// email providers live behind this interface outside this engine.
type Notifier interface {
	Send(ctx context.Context, channel Channel, recipient, content string) (*Receipt, error)
}

// LogNotifier writes notifications to the log instead of a real channel.
// Used in dev and as the default wiring until a provider is configured.
type LogNotifier struct {
	logger *logging.Logger
}

func NewLogNotifier(logger *logging.Logger) *LogNotifier {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(ctx context.Context, channel Channel, recipient, content string) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, &DeliveryError{Reason: "context cancelled", Err: err}
	}

	n.logger.Info("notification sent",
		"channel", string(channel),
		"recipient", recipient,
		"content", content,
	)

	return &Receipt{
		ProviderMessageID: uuid.NewString(),
		DeliveredAt:       time.Now(),
	}, nil
}

// WithTimeout bounds every Send with a deadline. A deadline hit is reported
// as a DeliveryError, never as an indeterminate state.
func WithTimeout(next Notifier, timeout time.Duration) Notifier {
	return &timeoutNotifier{next: next, timeout: timeout}
}

type timeoutNotifier struct {
	next    Notifier
	timeout time.Duration
}

func (n *timeoutNotifier) Send(ctx context.Context, channel Channel, recipient, content string) (*Receipt, error) {
	sendCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	receipt, err := n.next.Send(sendCtx, channel, recipient, content)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(sendCtx.Err(), context.DeadlineExceeded) {
			return nil, &DeliveryError{Reason: "timeout", Err: ErrDeliveryTimeout}
		}
		return nil, err
	}
	return receipt, nil
}
