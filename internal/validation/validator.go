package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"seatline/internal/models"
)

// SmokeValidator прогоняет сквозной сценарий покупки против запущенного API
type SmokeValidator struct {
	baseURL string
	client  *http.Client
}

// NewSmokeValidator создает новый валидатор
func NewSmokeValidator(baseURL string) *SmokeValidator {
	return &SmokeValidator{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// ValidateAll проверяет покупку, конфликт, отмену и асинхронную оплату на рейсе tripID
func (v *SmokeValidator) ValidateAll(tripID int64) error {
	slog.Info("Starting smoke validation", "base_url", v.baseURL, "trip_id", tripID)

	if err := v.expect("GET", "/health", nil, http.StatusOK, nil); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	free, err := v.availableSeats(tripID, 3)
	if err != nil {
		return err
	}

	booking, err := v.validateSyncCheckout(tripID, free[:2])
	if err != nil {
		return fmt.Errorf("sync checkout validation failed: %w", err)
	}

	if err := v.validateCancel(tripID, booking); err != nil {
		return fmt.Errorf("cancel validation failed: %w", err)
	}

	if err := v.validateAsyncCheckout(tripID, free[2:]); err != nil {
		return fmt.Errorf("async checkout validation failed: %w", err)
	}

	slog.Info("Smoke validation passed")
	return nil
}

func (v *SmokeValidator) availableSeats(tripID int64, n int) ([]string, error) {
	var seatMap models.SeatMapResponse
	if err := v.expect("GET", fmt.Sprintf("/api/trips/%d/seats", tripID), nil, http.StatusOK, &seatMap); err != nil {
		return nil, fmt.Errorf("seat map failed: %w", err)
	}

	var free []string
	for _, s := range seatMap.Seats {
		if s.Status == models.SeatAvailable {
			free = append(free, s.Label)
		}
		if len(free) == n {
			return free, nil
		}
	}
	return nil, fmt.Errorf("trip %d has %d available seats, need %d", tripID, len(free), n)
}

func (v *SmokeValidator) validateSyncCheckout(tripID int64, labels []string) (*models.CheckoutResponse, error) {
	req := checkoutRequest(tripID, models.MethodCash, labels)

	var resp models.CheckoutResponse
	if err := v.expect("POST", "/api/checkout", req, http.StatusCreated, &resp); err != nil {
		return nil, err
	}
	if resp.Status != models.BookingConfirmed {
		return nil, fmt.Errorf("expected confirmed booking, got %s", resp.Status)
	}
	if resp.TotalAmount != resp.PricePerSeat*int64(len(labels)) {
		return nil, fmt.Errorf("total %d does not match %d seats at %d", resp.TotalAmount, len(labels), resp.PricePerSeat)
	}

	// the same seats must not be sold twice
	if err := v.expect("POST", "/api/checkout", req, http.StatusConflict, nil); err != nil {
		return nil, fmt.Errorf("repeated checkout: %w", err)
	}

	var view models.BookingView
	if err := v.expect("GET", "/api/bookings/"+resp.BookingID, nil, http.StatusOK, &view); err != nil {
		return nil, err
	}
	if view.Payment == nil || view.Payment.Status != models.PaymentPaid {
		return nil, fmt.Errorf("expected paid payment for booking %s", resp.BookingID)
	}
	return &resp, nil
}

func (v *SmokeValidator) validateCancel(tripID int64, booking *models.CheckoutResponse) error {
	if err := v.expect("PATCH", "/api/bookings/"+booking.BookingID+"/cancel", nil, http.StatusOK, nil); err != nil {
		return err
	}

	var view models.BookingView
	if err := v.expect("GET", "/api/bookings/"+booking.BookingID, nil, http.StatusOK, &view); err != nil {
		return err
	}
	if view.Booking.Status != models.BookingCancelled {
		return fmt.Errorf("expected cancelled booking, got %s", view.Booking.Status)
	}

	// released seats can be bought again
	var again models.CheckoutResponse
	req := checkoutRequest(tripID, models.MethodCard, booking.Seats)
	if err := v.expect("POST", "/api/checkout", req, http.StatusCreated, &again); err != nil {
		return fmt.Errorf("checkout of released seats: %w", err)
	}
	return v.expect("PATCH", "/api/bookings/"+again.BookingID+"/cancel", nil, http.StatusOK, nil)
}

func (v *SmokeValidator) validateAsyncCheckout(tripID int64, labels []string) error {
	var resp models.CheckoutResponse
	req := checkoutRequest(tripID, models.MethodBankTransfer, labels)
	if err := v.expect("POST", "/api/checkout", req, http.StatusCreated, &resp); err != nil {
		return err
	}
	if resp.Status != models.BookingPending || resp.HoldExpiresAt == nil {
		return fmt.Errorf("expected pending booking with a hold, got %s", resp.Status)
	}

	notification := models.PaymentNotificationPayload{BookingID: resp.BookingID, Status: "paid"}
	if err := v.expect("POST", "/api/payments/notifications", notification, http.StatusOK, nil); err != nil {
		return err
	}

	var view models.BookingView
	if err := v.expect("GET", "/api/bookings/"+resp.BookingID, nil, http.StatusOK, &view); err != nil {
		return err
	}
	if view.Booking.Status != models.BookingConfirmed {
		return fmt.Errorf("expected confirmed booking after payment, got %s", view.Booking.Status)
	}
	return v.expect("PATCH", "/api/bookings/"+resp.BookingID+"/cancel", nil, http.StatusOK, nil)
}

func checkoutRequest(tripID int64, method string, labels []string) models.CheckoutRequest {
	seats := make([]models.SeatIdentifier, len(labels))
	for i, l := range labels {
		seats[i] = models.SeatIdentifier(l)
	}
	return models.CheckoutRequest{
		TripID:        tripID,
		SeatNumbers:   seats,
		Passenger:     models.Passenger{Name: "Smoke Test", Phone: "+77000000000"},
		PaymentMethod: method,
	}
}

// expect выполняет запрос и проверяет код ответа; out может быть nil
func (v *SmokeValidator) expect(method, path string, body interface{}, status int, out interface{}) error {
	resp, err := v.makeRequest(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != status {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s %s: expected %d, got %d: %s", method, path, status, resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

func (v *SmokeValidator) makeRequest(method, path string, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequest(method, v.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

// RunValidation запускает проверку против baseURL
func RunValidation(baseURL string, tripID int64) error {
	return NewSmokeValidator(baseURL).ValidateAll(tripID)
}
