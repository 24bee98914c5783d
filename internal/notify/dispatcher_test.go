package notify

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/reignacare/service-booking/internal/domain/booking"
	"github.com/reignacare/service-booking/internal/domain/party"
)

type recordingEmail struct {
	mu   sync.Mutex
	sent []Email
	err  error
}

func (r *recordingEmail) Send(_ context.Context, msg Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

type recordingPush struct {
	mu   sync.Mutex
	sent []Push
	err  error
}

func (r *recordingPush) Send(_ context.Context, msg Push) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, msg)
	return r.err
}

func client() party.Contact {
	return party.Contact{Ref: party.ClientRef(5), Name: "Jane Doe", Email: "jane@example.com", PushToken: "device-1"}
}

func TestEmailStatusChange_Completed(t *testing.T) {
	email := &recordingEmail{}
	d := NewDispatcher(email, &recordingPush{}, zap.NewNop())
	cost := booking.Money(6000)

	err := d.EmailStatusChange(context.Background(), StatusChange{
		BookingID:   42,
		Status:      booking.StatusCompleted,
		ServiceType: "Companionship",
		Client:      client(),
		CarerName:   "Sam Carer",
		TotalCost:   &cost,
	})
	require.NoError(t, err)
	require.Len(t, email.sent, 1)

	msg := email.sent[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Booking Updated: COMPLETED", msg.Subject)
	assert.Contains(t, msg.Text, "Hello Jane Doe")
	assert.Contains(t, msg.Text, "Total Cost: £60.00")
	assert.Contains(t, msg.Text, "Reigna Care Team")
	assert.Contains(t, msg.HTML, "<strong>Total Cost: £60.00</strong>")
	assert.Contains(t, msg.HTML, "Sam Carer")
}

func TestEmailStatusChange_OmitsCostBeforeCompletion(t *testing.T) {
	email := &recordingEmail{}
	d := NewDispatcher(email, &recordingPush{}, zap.NewNop())
	cost := booking.Money(6000)

	require.NoError(t, d.EmailStatusChange(context.Background(), StatusChange{
		BookingID: 1, Status: booking.StatusAccepted, Client: client(), TotalCost: &cost,
	}))
	require.Len(t, email.sent, 1)
	assert.NotContains(t, email.sent[0].Text, "Total Cost")
	assert.NotContains(t, email.sent[0].HTML, "Total Cost")
}

func TestEmailStatusChange_AdminSubjectAndEscaping(t *testing.T) {
	email := &recordingEmail{}
	d := NewDispatcher(email, &recordingPush{}, zap.NewNop())
	c := client()
	c.Name = "<script>x</script>"

	require.NoError(t, d.EmailStatusChange(context.Background(), StatusChange{
		BookingID: 1, Status: booking.StatusDeclined, Client: c, AdminAction: true,
	}))
	assert.Equal(t, "Booking Update (Admin Action): declined", email.sent[0].Subject)
	assert.NotContains(t, email.sent[0].HTML, "<script>")
}

func TestEmailStatusChange_SenderErrorReturned(t *testing.T) {
	d := NewDispatcher(&recordingEmail{err: errors.New("smtp down")}, &recordingPush{}, zap.NewNop())
	err := d.EmailStatusChange(context.Background(), StatusChange{BookingID: 1, Status: booking.StatusAccepted, Client: client()})
	assert.EqualError(t, err, "smtp down")
}

func TestPush_SkipsMissingToken(t *testing.T) {
	push := &recordingPush{}
	d := NewDispatcher(&recordingEmail{}, push, zap.NewNop())

	require.NoError(t, d.PushNewBooking(context.Background(), party.Contact{Ref: party.CarerRef(2)}, 9, "Companionship", "2026-10-19"))
	assert.Empty(t, push.sent)
}

func TestPushNewBooking(t *testing.T) {
	push := &recordingPush{}
	d := NewDispatcher(&recordingEmail{}, push, zap.NewNop())

	carer := party.Contact{Ref: party.CarerRef(2), Name: "Sam", PushToken: "carer-device"}
	require.NoError(t, d.PushNewBooking(context.Background(), carer, 9, "Companionship", "2026-10-19"))
	require.Len(t, push.sent, 1)
	assert.Equal(t, "carer-device", push.sent[0].Token)
	assert.Equal(t, "📅 New Booking Request", push.sent[0].Title)
	assert.Equal(t, "You have a new Companionship booking on 2026-10-19", push.sent[0].Body)
	assert.Equal(t, map[string]string{"booking_id": "9", "type": PushTypeNewBooking}, push.sent[0].Data)
}

func TestPushStatusChange(t *testing.T) {
	push := &recordingPush{err: errors.New("token expired")}
	d := NewDispatcher(&recordingEmail{}, push, zap.NewNop())

	err := d.PushStatusChange(context.Background(), StatusChange{BookingID: 3, Status: booking.StatusStarted, Client: client()})
	assert.EqualError(t, err, "token expired")
	require.Len(t, push.sent, 1)
	assert.Equal(t, "started", push.sent[0].Data["status"])
}
