package notify

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type recordingNotifier struct {
	sent []Notification
	err  error
}

func (r *recordingNotifier) Send(_ context.Context, n Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

func TestDispatchDelivers(t *testing.T) {
	rec := &recordingNotifier{}
	n := Notification{
		OrgID:       1,
		RecipientID: 42,
		Event:       EventRequestApproved,
		Subject:     "approved",
		RequestID:   7,
	}

	Dispatch(context.Background(), rec, n)

	assert.Len(t, rec.sent, 1)
	assert.Equal(t, n, rec.sent[0])
}

func TestDispatchSwallowsSendErrors(t *testing.T) {
	rec := &recordingNotifier{err: errors.New("smtp down")}

	// Must not panic or propagate
	Dispatch(context.Background(), rec, Notification{Event: EventRequestRejected})

	assert.Len(t, rec.sent, 1)
}

func TestDispatchNilNotifier(t *testing.T) {
	assert.NotPanics(t, func() {
		Dispatch(context.Background(), nil, Notification{Event: EventApprovalRequired})
	})
}

func TestLogNotifierNeverFails(t *testing.T) {
	err := LogNotifier{}.Send(context.Background(), Notification{
		OrgID:       1,
		RecipientID: 2,
		Event:       EventAssignmentCleared,
		Subject:     "cleared",
	})
	assert.NoError(t, err)
}
