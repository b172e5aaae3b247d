package email

import (
	"context"
	"fmt"
	"strings"
)

// CompositeSender fans a message out to multiple Senders (e.g. SMTP plus
// a file logger). Errors from individual senders are collected, not
// short-circuited, so one failing sink does not silence the others.
type CompositeSender struct {
	senders []Sender
}

// NewCompositeSender creates a CompositeSender over the given senders.
func NewCompositeSender(senders ...Sender) *CompositeSender {
	return &CompositeSender{senders: senders}
}

// AddSender appends a sender to the fan-out list.
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send delivers through every registered sender and reports all failures
// as one error.
func (cs *CompositeSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return fmt.Errorf("no senders configured in CompositeSender")
	}

	var failures []string
	for _, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			failures = append(failures, err.Error())
		}
	}
	if len(failures) > 0 {
		return fmt.Errorf("composite email send failed: [ %s ]", strings.Join(failures, "; "))
	}
	return nil
}
