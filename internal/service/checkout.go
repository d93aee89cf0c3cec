package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	apperrors "seatline/internal/errors"
	"seatline/internal/inventory"
	"seatline/internal/logger"
	"seatline/internal/metrics"
	"seatline/internal/middleware"
	"seatline/internal/models"
	"seatline/internal/notify"
	"seatline/internal/pricing"
	"seatline/internal/repository"
)

type CheckoutService struct {
	trips     repository.TripCatalog
	store     repository.Store
	committer Committer
	notifier  notify.Notifier
	holdTTL   time.Duration
	now       func() time.Time
}

func NewCheckoutService(trips repository.TripCatalog, store repository.Store, committer Committer, notifier notify.Notifier, holdTTL time.Duration, opts ...Option) *CheckoutService {
	o := buildOptions(opts)
	return &CheckoutService{
		trips:     trips,
		store:     store,
		committer: committer,
		notifier:  notifier,
		holdTTL:   holdTTL,
		now:       o.now,
	}
}

// Strategy returns the name of the commit strategy in use
func (s *CheckoutService) Strategy() string {
	return s.committer.Name()
}

// Checkout sells or holds the requested seats for one passenger. Either every
// seat is claimed together with the booking and payment, or nothing changes.
func (s *CheckoutService) Checkout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	start := time.Now()
	resp, err := s.checkout(ctx, req)

	outcome := "ok"
	if err != nil {
		outcome = apperrors.KindOf(err).String()
	}
	metrics.CheckoutsTotal.WithLabelValues(outcome, s.committer.Name()).Inc()
	metrics.CheckoutDuration.WithLabelValues(s.committer.Name()).Observe(time.Since(start).Seconds())
	return resp, err
}

func (s *CheckoutService) checkout(ctx context.Context, req *models.CheckoutRequest) (*models.CheckoutResponse, error) {
	const op = "checkout"

	identifiers, err := validateCheckout(req)
	if err != nil {
		return nil, err
	}
	method := normalizeMethod(req.PaymentMethod)

	trip, err := s.trips.GetTrip(ctx, req.TripID)
	if err != nil {
		return nil, apperrors.Internal(op, fmt.Errorf("failed to get trip: %w", err))
	}
	if trip == nil {
		return nil, apperrors.NotFound(op, "trip %d not found", req.TripID)
	}
	seatCount := trip.SeatCount()
	if seatCount <= 0 {
		return nil, apperrors.Capacity(op, "trip %d has no known seat capacity", trip.ID)
	}

	if err := inventory.EnsureSeeded(ctx, s.store.Seats(), trip.ID, seatCount); err != nil {
		return nil, err
	}

	records, err := inventory.Lookup(ctx, s.store.Seats(), trip.ID, seatCount, identifiers)
	if err != nil {
		return nil, err
	}
	taken := lo.FilterMap(records, func(r models.SeatRecord, _ int) (string, bool) {
		return r.SeatLabel, r.Status != models.SeatAvailable
	})
	if len(taken) > 0 {
		return nil, apperrors.Conflict(op, "seats %s are not available", strings.Join(taken, ", "))
	}

	price, err := pricing.PricePerSeat(trip.BasePrice, trip.Route, req.Stops)
	if err != nil {
		return nil, err
	}

	labels := lo.Map(records, func(r models.SeatRecord, _ int) string { return r.SeatLabel })
	plan := s.plan(ctx, trip, req, method, labels, price)

	if err := s.committer.Commit(ctx, plan); err != nil {
		return nil, err
	}

	logger.WithContext(ctx).Info("Checkout committed",
		"booking_id", plan.Booking.ID, "trip_id", trip.ID, "seats", labels,
		"status", plan.Booking.Status, "total", plan.Booking.TotalPrice, "strategy", s.committer.Name())

	s.afterCommit(ctx, plan.Booking)

	return buildCheckoutResponse(trip, plan), nil
}

func (s *CheckoutService) plan(ctx context.Context, trip *models.Trip, req *models.CheckoutRequest, method string, labels []string, price int64) *CommitPlan {
	now := s.now()
	bookingID := uuid.NewString()
	total := pricing.Total(price, len(labels))

	booking := &models.Booking{
		ID:            bookingID,
		TripID:        trip.ID,
		SeatLabels:    labels,
		Passenger:     cleanPassenger(req.Passenger),
		PricePerSeat:  price,
		TotalPrice:    total,
		Status:        models.BookingConfirmed,
		PaymentMethod: method,
		CreatedAt:     now,
	}
	if userID, ok := middleware.UserIDFromContext(ctx); ok {
		booking.UserID = &userID
	}

	payment := &models.Payment{
		ID:        uuid.NewString(),
		BookingID: bookingID,
		Method:    method,
		Amount:    total,
		Status:    models.PaymentPaid,
		SettledAt: &now,
		CreatedAt: now,
	}

	plan := &CommitPlan{
		TripID:     trip.ID,
		Labels:     labels,
		SeatStatus: models.SeatSold,
		Booking:    booking,
		Payment:    payment,
	}

	if models.IsAsynchronousPayment(method) {
		expires := now.Add(s.holdTTL)
		plan.SeatStatus = models.SeatHeld
		plan.HoldExpiresAt = &expires
		booking.Status = models.BookingPending
		payment.Status = models.PaymentPending
		payment.SettledAt = nil
	}
	return plan
}

// afterCommit runs post-commit side effects; they never fail the checkout
func (s *CheckoutService) afterCommit(ctx context.Context, booking *models.Booking) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyBookingConfirmed(ctx, booking); err != nil {
		metrics.NotificationFailures.WithLabelValues(models.EventBookingConfirmed).Inc()
		logger.WithContext(ctx).Warn("Failed to send booking confirmation", "booking_id", booking.ID, "error", err)
	}
}

func validateCheckout(req *models.CheckoutRequest) ([]string, error) {
	const op = "checkout"

	if req == nil {
		return nil, apperrors.Validation(op, "request body is required")
	}
	if req.TripID <= 0 {
		return nil, apperrors.Validation(op, "tripId is required")
	}

	identifiers := lo.Uniq(lo.FilterMap(req.SeatNumbers, func(id models.SeatIdentifier, _ int) (string, bool) {
		v := strings.TrimSpace(id.String())
		return v, v != ""
	}))
	if len(identifiers) == 0 {
		return nil, apperrors.Validation(op, "seatNumbers must contain at least one seat")
	}

	if strings.TrimSpace(req.Passenger.Name) == "" || strings.TrimSpace(req.Passenger.Phone) == "" {
		return nil, apperrors.Validation(op, "passenger name and phone are required")
	}

	method := normalizeMethod(req.PaymentMethod)
	if method == "" {
		return nil, apperrors.Validation(op, "paymentMethod is required")
	}
	if !models.IsKnownPaymentMethod(method) {
		return nil, apperrors.Validation(op, "unsupported payment method %q", req.PaymentMethod)
	}
	return identifiers, nil
}

func normalizeMethod(method string) string {
	return strings.ToLower(strings.TrimSpace(method))
}

func cleanPassenger(p models.Passenger) models.Passenger {
	p.Name = strings.TrimSpace(p.Name)
	p.Phone = strings.TrimSpace(p.Phone)
	if p.Email != nil && strings.TrimSpace(*p.Email) == "" {
		p.Email = nil
	}
	if p.Note != nil && strings.TrimSpace(*p.Note) == "" {
		p.Note = nil
	}
	return p
}

func buildCheckoutResponse(trip *models.Trip, plan *CommitPlan) *models.CheckoutResponse {
	resp := &models.CheckoutResponse{
		BookingID:     plan.Booking.ID,
		PaymentID:     plan.Payment.ID,
		Status:        plan.Booking.Status,
		Times:         models.TimesSnapshot{DepartureTime: trip.DepartureTime, ArrivalTime: trip.ArrivalTime},
		Seats:         plan.Labels,
		Passenger:     plan.Booking.Passenger,
		PricePerSeat:  plan.Booking.PricePerSeat,
		TotalAmount:   plan.Booking.TotalPrice,
		PaymentMethod: plan.Booking.PaymentMethod,
		HoldExpiresAt: plan.HoldExpiresAt,
	}
	if trip.Route != nil {
		resp.Route = models.RouteSnapshot{
			From:        trip.Route.Origin,
			To:          trip.Route.Destination,
			DurationMin: trip.Route.DurationMin,
		}
	}
	if trip.Bus != nil {
		resp.Bus = models.BusSnapshot{BusType: trip.Bus.BusType, SeatCount: trip.Bus.SeatCount}
	}
	return resp
}
