package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "seatline/internal/errors"
	"seatline/internal/models"
)

func TestCancel_ConfirmedBookingReleasesSeats(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		resp, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodCard, "1", "2"))
		require.NoError(t, err)

		require.NoError(t, e.services.Bookings.Cancel(ctx, resp.BookingID))

		statuses := e.seatStatuses(t, smallTrip)
		assert.Equal(t, models.SeatAvailable, statuses["1"])
		assert.Equal(t, models.SeatAvailable, statuses["2"])

		view, err := e.services.Bookings.Get(ctx, resp.BookingID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, view.Booking.Status)
		assert.Equal(t, models.PaymentRefundPending, view.Payment.Status)

		_, cancelled := e.notifier.counts()
		assert.Equal(t, 1, cancelled)

		// repeated cancel is a no-op
		require.NoError(t, e.services.Bookings.Cancel(ctx, resp.BookingID))
		_, cancelled = e.notifier.counts()
		assert.Equal(t, 1, cancelled)
	})
}

func TestCancel_UnknownBooking(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		err := e.services.Bookings.Cancel(context.Background(), "missing")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

		_, err = e.services.Bookings.Get(context.Background(), "missing")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestCancel_DoesNotReleaseResoldSeat(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		first, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodCash, "1"))
		require.NoError(t, err)
		require.NoError(t, e.services.Bookings.Cancel(ctx, first.BookingID))

		second, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodCash, "1"))
		require.NoError(t, err)

		// a stale release for the first booking must not free the re-sold seat
		released, err := releaseSeats(ctx, e.db, first.BookingID)
		require.NoError(t, err)
		assert.Zero(t, released)

		records, err := e.db.Seats().ListByHolder(ctx, second.BookingID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, models.SeatSold, records[0].Status)
	})
}

func TestPaymentNotification_Paid(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		resp, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodVirtualAccount, "3"))
		require.NoError(t, err)

		e.clock.Advance(30 * time.Second)
		err = e.services.Bookings.HandlePaymentNotification(ctx, &models.PaymentNotificationPayload{
			BookingID: resp.BookingID,
			Status:    "paid",
		})
		require.NoError(t, err)

		view, err := e.services.Bookings.Get(ctx, resp.BookingID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingConfirmed, view.Booking.Status)
		assert.Equal(t, models.PaymentPaid, view.Payment.Status)
		require.NotNil(t, view.Payment.SettledAt)
		assert.Equal(t, e.clock.Now(), *view.Payment.SettledAt)

		records, err := e.db.Seats().ListByHolder(ctx, resp.BookingID)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, models.SeatSold, records[0].Status)
		assert.Nil(t, records[0].HoldExpiresAt)

		// duplicate delivery is accepted
		err = e.services.Bookings.HandlePaymentNotification(ctx, &models.PaymentNotificationPayload{
			BookingID: resp.BookingID,
			Status:    "paid",
		})
		assert.NoError(t, err)
	})
}

func TestPaymentNotification_Failed(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		resp, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodBankTransfer, "1", "2"))
		require.NoError(t, err)

		err = e.services.Bookings.HandlePaymentNotification(ctx, &models.PaymentNotificationPayload{
			BookingID: resp.BookingID,
			Status:    "failed",
		})
		require.NoError(t, err)

		view, err := e.services.Bookings.Get(ctx, resp.BookingID)
		require.NoError(t, err)
		assert.Equal(t, models.BookingCancelled, view.Booking.Status)
		assert.Equal(t, models.PaymentFailed, view.Payment.Status)
		assert.Equal(t, models.SeatAvailable, e.seatStatuses(t, smallTrip)["1"])
		assert.Equal(t, models.SeatAvailable, e.seatStatuses(t, smallTrip)["2"])
	})
}

func TestPaymentNotification_AfterExpiry(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		resp, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodBankTransfer, "1"))
		require.NoError(t, err)

		booking, err := e.db.Bookings().GetByID(ctx, resp.BookingID)
		require.NoError(t, err)
		_, err = e.services.Bookings.Expire(ctx, booking)
		require.NoError(t, err)

		err = e.services.Bookings.HandlePaymentNotification(ctx, &models.PaymentNotificationPayload{
			BookingID: resp.BookingID,
			Status:    "paid",
		})
		assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))
		assert.Equal(t, models.SeatAvailable, e.seatStatuses(t, smallTrip)["1"])
	})
}

func TestPaymentNotification_Validation(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		err := e.services.Bookings.HandlePaymentNotification(context.Background(), &models.PaymentNotificationPayload{
			BookingID: "whatever",
			Status:    "maybe",
		})
		assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

		err = e.services.Bookings.HandlePaymentNotification(context.Background(), &models.PaymentNotificationPayload{
			BookingID: "missing",
			Status:    "paid",
		})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestReleaseExpiredHold(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		resp, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodBankTransfer, "4"))
		require.NoError(t, err)

		records, err := e.db.Seats().ListByHolder(ctx, resp.BookingID)
		require.NoError(t, err)
		require.Len(t, records, 1)

		// still pending: the booking pass owns it
		ok, err := e.services.Bookings.ReleaseExpiredHold(ctx, records[0])
		require.NoError(t, err)
		assert.False(t, ok)

		// booking vanished, the hold is orphaned
		require.NoError(t, e.db.Bookings().Delete(ctx, resp.BookingID))
		ok, err = e.services.Bookings.ReleaseExpiredHold(ctx, records[0])
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, models.SeatAvailable, e.seatStatuses(t, smallTrip)["4"])
	})
}

func TestReleaseExpiredHold_HolderStatus(t *testing.T) {
	tests := []struct {
		name    string
		status  models.BookingStatus
		release bool
	}{
		{name: "confirmed", status: models.BookingConfirmed, release: false},
		{name: "completed", status: models.BookingCompleted, release: false},
		{name: "cancelled", status: models.BookingCancelled, release: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			forEachStrategy(t, func(t *testing.T, e *env) {
				ctx := context.Background()
				resp, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodBankTransfer, "3"))
				require.NoError(t, err)

				ok, err := e.db.Bookings().TransitionStatus(ctx, resp.BookingID, models.BookingPending, tt.status)
				require.NoError(t, err)
				require.True(t, ok)

				records, err := e.db.Seats().ListByHolder(ctx, resp.BookingID)
				require.NoError(t, err)
				require.Len(t, records, 1)

				ok, err = e.services.Bookings.ReleaseExpiredHold(ctx, records[0])
				require.NoError(t, err)
				assert.Equal(t, tt.release, ok)

				want := models.SeatHeld
				if tt.release {
					want = models.SeatAvailable
				}
				assert.Equal(t, want, e.seatStatuses(t, smallTrip)["3"])
			})
		})
	}
}

func TestBookings_MalformedID(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()

		_, err := e.services.Bookings.Get(ctx, "abc")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

		err = e.services.Bookings.Cancel(ctx, "not-a-uuid")
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))

		err = e.services.Bookings.HandlePaymentNotification(ctx, &models.PaymentNotificationPayload{
			BookingID: "42",
			Status:    "paid",
		})
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}

func TestSeatMap(t *testing.T) {
	forEachStrategy(t, func(t *testing.T, e *env) {
		ctx := context.Background()
		_, err := e.services.Checkout.Checkout(ctx, checkoutRequest(smallTrip, models.MethodCash, "2"))
		require.NoError(t, err)

		m, err := e.services.Seats.Map(ctx, smallTrip)
		require.NoError(t, err)
		assert.Equal(t, 4, m.SeatCount)
		assert.Equal(t, 3, m.Available)
		require.Len(t, m.Seats, 4)
		assert.Equal(t, "2", m.Seats[1].Label)
		assert.Equal(t, models.SeatSold, m.Seats[1].Status)

		_, err = e.services.Seats.Map(ctx, unknownTrp)
		assert.Equal(t, apperrors.KindNotFound, apperrors.KindOf(err))
	})
}
