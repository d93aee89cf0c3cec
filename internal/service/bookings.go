package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "seatline/internal/errors"
	"seatline/internal/logger"
	"seatline/internal/metrics"
	"seatline/internal/models"
	"seatline/internal/notify"
	"seatline/internal/repository"
)

// BookingService owns booking transitions after checkout: administrative
// cancellation, payment settlement and expiry.
type BookingService struct {
	store         repository.Database
	transactional bool
	notifier      notify.Notifier
	now           func() time.Time
}

func NewBookingService(store repository.Database, transactional bool, notifier notify.Notifier, opts ...Option) *BookingService {
	o := buildOptions(opts)
	return &BookingService{
		store:         store,
		transactional: transactional,
		notifier:      notifier,
		now:           o.now,
	}
}

// run executes fn inside a transaction when the transactional strategy is in use
func (s *BookingService) run(ctx context.Context, fn func(ctx context.Context, st repository.Store) error) error {
	if s.transactional {
		return s.store.WithinTx(ctx, fn)
	}
	return fn(ctx, s.store)
}

// findBooking loads a booking by id. Ids that are not UUIDs can never
// match a booking and are reported as not found.
func (s *BookingService) findBooking(ctx context.Context, op, id string) (*models.Booking, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, apperrors.NotFound(op, "booking %s not found", id)
	}
	booking, err := s.store.Bookings().GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Internal(op, fmt.Errorf("failed to get booking: %w", err))
	}
	if booking == nil {
		return nil, apperrors.NotFound(op, "booking %s not found", id)
	}
	return booking, nil
}

func (s *BookingService) Get(ctx context.Context, id string) (*models.BookingView, error) {
	booking, err := s.findBooking(ctx, "get booking", id)
	if err != nil {
		return nil, err
	}

	payment, err := s.store.Payments().GetByBooking(ctx, id)
	if err != nil {
		return nil, apperrors.Internal("get booking", fmt.Errorf("failed to get payment: %w", err))
	}

	return &models.BookingView{Booking: booking, Payment: payment}, nil
}

// Cancel is the administrative cancellation of a pending or confirmed booking
func (s *BookingService) Cancel(ctx context.Context, id string) error {
	const op = "cancel booking"

	booking, err := s.findBooking(ctx, op, id)
	if err != nil {
		return err
	}

	switch booking.Status {
	case models.BookingPending, models.BookingConfirmed:
	case models.BookingCancelled:
		return nil
	default:
		return apperrors.Conflict(op, "booking %s is %s and cannot be cancelled", id, booking.Status)
	}

	_, err = s.cancel(ctx, booking, models.ReasonAdministrator)
	if apperrors.IsConflict(err) {
		// lost to the reaper or a payment notification
		current, gerr := s.store.Bookings().GetByID(ctx, id)
		if gerr == nil && current != nil && current.Status == models.BookingCancelled {
			return nil
		}
	}
	return err
}

// Expire cancels a pending booking whose TTL has passed. It returns the
// number of seats released.
func (s *BookingService) Expire(ctx context.Context, booking *models.Booking) (int, error) {
	if booking.Status != models.BookingPending {
		return 0, nil
	}
	return s.cancel(ctx, booking, models.ReasonExpired)
}

// cancel moves the booking from its current status to cancelled, releases
// the seats it still holds and closes the payment. The notification is sent
// after the state change and its failure is only logged.
func (s *BookingService) cancel(ctx context.Context, booking *models.Booking, reason string) (int, error) {
	const op = "cancel booking"
	released := 0

	err := s.run(ctx, func(ctx context.Context, st repository.Store) error {
		ok, err := st.Bookings().TransitionStatus(ctx, booking.ID, booking.Status, models.BookingCancelled)
		if err != nil {
			return fmt.Errorf("failed to update booking status: %w", err)
		}
		if !ok {
			return apperrors.Conflict(op, "booking %s is no longer %s", booking.ID, booking.Status)
		}

		released, err = releaseSeats(ctx, st, booking.ID)
		if err != nil {
			return err
		}

		payment, err := st.Payments().GetByBooking(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if payment == nil {
			return nil
		}
		if next, ok := paymentAfterCancel(payment.Status, reason); ok {
			if err := st.Payments().UpdateStatus(ctx, payment.ID, next, nil); err != nil {
				return fmt.Errorf("failed to update payment status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}

	booking.Status = models.BookingCancelled
	logger.WithContext(ctx).Info("Booking cancelled", "booking_id", booking.ID, "reason", reason, "seats_released", released)

	if s.notifier != nil {
		summary := fmt.Sprintf("Booking %s for trip %d, seats %s, was cancelled (%s)",
			booking.ID, booking.TripID, strings.Join(booking.SeatLabels, ", "), reason)
		if err := s.notifier.NotifyBookingCancelled(ctx, booking.Passenger, summary); err != nil {
			metrics.NotificationFailures.WithLabelValues(models.EventBookingCancelled).Inc()
			slog.Warn("Failed to send cancellation notification", "booking_id", booking.ID, "error", err)
		}
	}
	return released, nil
}

// releaseSeats returns every held or sold seat of the booking to available.
// The holder guard keeps a seat that was re-sold meanwhile untouched.
func releaseSeats(ctx context.Context, st repository.Store, bookingID string) (int, error) {
	seats, err := st.Seats().ListByHolder(ctx, bookingID)
	if err != nil {
		return 0, fmt.Errorf("failed to list seats: %w", err)
	}

	released := 0
	for _, seat := range seats {
		if seat.Status != models.SeatHeld && seat.Status != models.SeatSold {
			continue
		}
		ok, err := st.Seats().CompareAndSwap(ctx, seat.TripID, seat.SeatLabel, repository.Release(seat.Status, bookingID))
		if err != nil {
			return released, fmt.Errorf("failed to release seat %s: %w", seat.SeatLabel, err)
		}
		if !ok {
			metrics.SeatConflicts.Inc()
			slog.Warn("Seat changed before release", "booking_id", bookingID, "seat", seat.SeatLabel)
			continue
		}
		released++
	}
	return released, nil
}

func paymentAfterCancel(current models.PaymentStatus, reason string) (models.PaymentStatus, bool) {
	switch current {
	case models.PaymentPending:
		if reason == models.ReasonPaymentFailed {
			return models.PaymentFailed, true
		}
		return models.PaymentCancelled, true
	case models.PaymentPaid:
		return models.PaymentRefundPending, true
	}
	return current, false
}

// HandlePaymentNotification settles or fails the payment of a pending booking
func (s *BookingService) HandlePaymentNotification(ctx context.Context, payload *models.PaymentNotificationPayload) error {
	const op = "payment notification"

	paid, err := parseSettlement(payload.Status)
	if err != nil {
		return err
	}

	booking, err := s.findBooking(ctx, op, payload.BookingID)
	if err != nil {
		return err
	}

	switch {
	case paid && (booking.Status == models.BookingConfirmed || booking.Status == models.BookingCompleted):
		return nil
	case !paid && booking.Status == models.BookingCancelled:
		return nil
	case booking.Status == models.BookingCancelled:
		return apperrors.Conflict(op, "booking %s was cancelled before the payment settled", booking.ID)
	case booking.Status != models.BookingPending:
		return apperrors.Conflict(op, "booking %s is already %s", booking.ID, booking.Status)
	}

	if !paid {
		_, err := s.cancel(ctx, booking, models.ReasonPaymentFailed)
		return err
	}
	return s.settle(ctx, booking)
}

func parseSettlement(status string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "paid", "success", "completed":
		return true, nil
	case "failed", "declined", "cancelled":
		return false, nil
	}
	return false, apperrors.Validation("payment notification", "unknown payment status %q", status)
}

type heldSeat struct {
	tripID  int64
	label   string
	expires *time.Time
}

// settle turns held seats into sold ones and confirms the booking
func (s *BookingService) settle(ctx context.Context, booking *models.Booking) error {
	const op = "settle payment"
	now := s.now()

	var flipped []heldSeat
	confirmed := false

	err := s.run(ctx, func(ctx context.Context, st repository.Store) error {
		seats, err := st.Seats().ListByHolder(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to list seats: %w", err)
		}
		if len(seats) != len(booking.SeatLabels) {
			return apperrors.Conflict(op, "booking %s no longer holds all of its seats", booking.ID)
		}

		for _, seat := range seats {
			if seat.Status == models.SeatSold {
				continue
			}
			ok, err := st.Seats().CompareAndSwap(ctx, seat.TripID, seat.SeatLabel, repository.SeatTransition{
				From:       models.SeatHeld,
				FromHolder: &booking.ID,
				To:         models.SeatSold,
				ToHolder:   &booking.ID,
			})
			if err != nil {
				return fmt.Errorf("failed to sell seat %s: %w", seat.SeatLabel, err)
			}
			if !ok {
				metrics.SeatConflicts.Inc()
				return apperrors.Conflict(op, "seat %s is no longer held by booking %s", seat.SeatLabel, booking.ID)
			}
			flipped = append(flipped, heldSeat{tripID: seat.TripID, label: seat.SeatLabel, expires: seat.HoldExpiresAt})
		}

		ok, err := st.Bookings().TransitionStatus(ctx, booking.ID, models.BookingPending, models.BookingConfirmed)
		if err != nil {
			return fmt.Errorf("failed to confirm booking: %w", err)
		}
		if !ok {
			return apperrors.Conflict(op, "booking %s is no longer pending", booking.ID)
		}
		confirmed = true

		payment, err := st.Payments().GetByBooking(ctx, booking.ID)
		if err != nil {
			return fmt.Errorf("failed to get payment: %w", err)
		}
		if payment != nil {
			if err := st.Payments().UpdateStatus(ctx, payment.ID, models.PaymentPaid, &now); err != nil {
				return fmt.Errorf("failed to update payment status: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		if !s.transactional {
			if uerr := s.undoSettle(context.WithoutCancel(ctx), booking.ID, flipped, confirmed); uerr != nil {
				metrics.CompensationFailures.Inc()
				slog.Error("Failed to undo payment settlement", "booking_id", booking.ID, "error", uerr)
				return apperrors.Internal(op, errors.Join(err, uerr))
			}
		}
		return classify(err)
	}

	booking.Status = models.BookingConfirmed
	logger.WithContext(ctx).Info("Payment settled", "booking_id", booking.ID, "seats", booking.SeatLabels)

	if s.notifier != nil {
		if err := s.notifier.NotifyBookingConfirmed(ctx, booking); err != nil {
			metrics.NotificationFailures.WithLabelValues(models.EventBookingConfirmed).Inc()
			slog.Warn("Failed to send booking confirmation", "booking_id", booking.ID, "error", err)
		}
	}
	return nil
}

func (s *BookingService) undoSettle(ctx context.Context, bookingID string, flipped []heldSeat, confirmed bool) error {
	var errs []error
	if confirmed {
		if _, err := s.store.Bookings().TransitionStatus(ctx, bookingID, models.BookingConfirmed, models.BookingPending); err != nil {
			errs = append(errs, err)
		}
	}
	for _, seat := range flipped {
		// a seat released by the reaper in the meantime stays released
		_, err := s.store.Seats().CompareAndSwap(ctx, seat.tripID, seat.label, repository.SeatTransition{
			From:          models.SeatSold,
			FromHolder:    &bookingID,
			To:            models.SeatHeld,
			ToHolder:      &bookingID,
			HoldExpiresAt: seat.expires,
		})
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ReleaseExpiredHold frees a held seat whose hold has passed and whose
// booking is gone or cancelled. Seats of pending bookings belong to the
// booking pass and seats of confirmed ones are never touched. It reports
// whether the seat was freed.
func (s *BookingService) ReleaseExpiredHold(ctx context.Context, seat models.SeatRecord) (bool, error) {
	if seat.Status != models.SeatHeld || seat.HolderBookingID == nil {
		return false, nil
	}

	holder, err := s.store.Bookings().GetByID(ctx, *seat.HolderBookingID)
	if err != nil {
		return false, fmt.Errorf("failed to get booking: %w", err)
	}
	if holder != nil && holder.Status != models.BookingCancelled {
		return false, nil
	}

	ok, err := s.store.Seats().CompareAndSwap(ctx, seat.TripID, seat.SeatLabel, repository.Release(models.SeatHeld, *seat.HolderBookingID))
	if err != nil {
		return false, fmt.Errorf("failed to release seat %s: %w", seat.SeatLabel, err)
	}
	return ok, nil
}

// PendingBefore lists pending bookings created before cutoff
func (s *BookingService) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Booking, error) {
	return s.store.Bookings().ListPendingBefore(ctx, cutoff, limit)
}

// ExpiredHolds lists held seats whose hold passed before now
func (s *BookingService) ExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.SeatRecord, error) {
	return s.store.Seats().ListExpiredHolds(ctx, now, limit)
}
