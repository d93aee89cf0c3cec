package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatline/internal/models"
)

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
	payloads []interface{}
	err      error
}

func (p *recordingPublisher) Publish(ctx context.Context, subject string, data interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.subjects = append(p.subjects, subject)
	p.payloads = append(p.payloads, data)
	return p.err
}

func TestEventNotifier_Confirmed(t *testing.T) {
	pub := &recordingPublisher{}
	n := NewEventNotifier(pub)
	ref := "pay-1"

	err := n.NotifyBookingConfirmed(context.Background(), &models.Booking{
		ID:         "b-1",
		TripID:     3,
		SeatLabels: []string{"1", "2"},
		TotalPrice: 200000,
		Status:     models.BookingConfirmed,
		PaymentRef: &ref,
	})
	require.NoError(t, err)

	require.Equal(t, []string{models.EventBookingConfirmed}, pub.subjects)
	event := pub.payloads[0].(models.BookingConfirmedEvent)
	assert.Equal(t, "b-1", event.BookingID)
	assert.Equal(t, "pay-1", event.PaymentID)
	assert.Equal(t, int64(200000), event.TotalAmount)
}

func TestEventNotifier_PublishError(t *testing.T) {
	pub := &recordingPublisher{err: errors.New("broker down")}
	n := NewEventNotifier(pub)

	err := n.NotifyBookingCancelled(context.Background(), models.Passenger{Name: "Aidar", Phone: "+77010000000"}, "booking b-1 expired")
	assert.Error(t, err)
}

type blockingNotifier struct {
	calls chan string
}

func (b *blockingNotifier) NotifyBookingConfirmed(ctx context.Context, booking *models.Booking) error {
	b.calls <- booking.ID
	return errors.New("smtp down")
}

func (b *blockingNotifier) NotifyBookingCancelled(ctx context.Context, recipient models.Passenger, summary string) error {
	b.calls <- summary
	return nil
}

func TestAsync_SwallowsErrorsAndDetachesContext(t *testing.T) {
	inner := &blockingNotifier{calls: make(chan string, 2)}
	a := NewAsync(inner, time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.NoError(t, a.NotifyBookingConfirmed(ctx, &models.Booking{ID: "b-9"}))
	assert.NoError(t, a.NotifyBookingCancelled(ctx, models.Passenger{}, "gone"))
	a.Wait()

	close(inner.calls)
	var got []string
	for c := range inner.calls {
		got = append(got, c)
	}
	assert.ElementsMatch(t, []string{"b-9", "gone"}, got)
}
