package messaging

import (
	"context"
	"fmt"
	"strings"
)

// CompositeSender delegates delivery to multiple Senders.
type CompositeSender struct {
	senders []Sender
}

// NewCompositeSender creates a new CompositeSender. It returns the concrete
// type so AddSender can be called directly.
func NewCompositeSender(senders ...Sender) *CompositeSender {
	return &CompositeSender{senders: senders}
}

// AddSender adds a sender to the composite sender's list.
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send calls every registered sender and collects their errors into one.
func (cs *CompositeSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeSender")
	}

	var allErrors []string
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			allErrors = append(allErrors, err.Error())
		}
	}

	if len(allErrors) > 0 {
		return fmt.Errorf("composite message send failed: [ %s ]", strings.Join(allErrors, "; "))
	}
	return nil
}
