// Package notify dispatches best-effort notifications for request and
// assignment lifecycle events. Delivery is fire-and-forget: dispatch
// always happens after the surrounding transaction commits, and a failed
// send is logged, never propagated.
package notify

import (
	"context"
	"log"
)

// Notification events
const (
	EventApprovalRequired  = "approval_required"
	EventRequestApproved   = "request_approved"
	EventRequestRejected   = "request_rejected"
	EventAwaitingStock     = "awaiting_procurement"
	EventRequestFulfilled  = "request_fulfilled"
	EventAssignmentCleared = "assignment_cleared"
)

// Notification is one message to one recipient.
type Notification struct {
	OrgID        int64  `json:"org_id"`
	RecipientID  int64  `json:"recipient_id"`
	Event        string `json:"event"`
	Subject      string `json:"subject"`
	Body         string `json:"body"`
	RequestID    int64  `json:"request_id,omitempty"`
	AssignmentID int64  `json:"assignment_id,omitempty"`
}

// Notifier delivers a notification. Implementations are the boundary to
// email/SMS/in-app transports, which live outside this service.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the process log. It is the default
// transport and never fails.
type LogNotifier struct{}

// Send logs the notification.
func (LogNotifier) Send(ctx context.Context, n Notification) error {
	log.Printf("notify org=%d recipient=%d event=%s request=%d assignment=%d subject=%q",
		n.OrgID, n.RecipientID, n.Event, n.RequestID, n.AssignmentID, n.Subject)
	return nil
}

// Dispatch sends n and swallows any error. Call only after the
// transaction that produced the event has committed.
func Dispatch(ctx context.Context, notifier Notifier, n Notification) {
	if notifier == nil {
		return
	}
	if err := notifier.Send(ctx, n); err != nil {
		log.Printf("notify: send failed for event=%s recipient=%d: %v", n.Event, n.RecipientID, err)
	}
}
