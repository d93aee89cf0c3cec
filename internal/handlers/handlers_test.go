package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatline/internal/models"
	"seatline/internal/repository"
	"seatline/internal/repository/memory"
	"seatline/internal/service"
)

func setupRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	departure := time.Now().Add(24 * time.Hour)
	catalog := memory.NewCatalog(&models.Trip{
		ID:            1,
		RouteID:       1,
		DepartureTime: departure,
		ArrivalTime:   departure.Add(3 * time.Hour),
		BasePrice:     100000,
		Route:         &models.Route{ID: 1, Origin: "Astana", Destination: "Karaganda", DistanceKm: 220, DurationMin: 180},
		Bus:           &models.Bus{ID: 1, BusType: "minibus", SeatCount: 6},
	})
	db := memory.New()
	committer, err := service.NewCommitter(service.StrategyAuto, db)
	require.NoError(t, err)
	h := NewHandlers(service.NewServices(repository.NewRepositories(db, catalog), committer, nil, 2*time.Minute))

	r := gin.New()
	api := r.Group("/api")
	{
		api.POST("/checkout", h.Checkout)
		api.GET("/trips/:id/seats", h.SeatMap)
		api.GET("/bookings/:id", h.GetBooking)
		api.PATCH("/bookings/:id/cancel", h.CancelBooking)
		api.POST("/payments/notifications", h.OnPaymentUpdates)
	}
	return r
}

func perform(r *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		_ = json.NewEncoder(&buf).Encode(b)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func checkoutBody(tripID int64, method string, seats ...interface{}) map[string]interface{} {
	return map[string]interface{}{
		"tripId":        tripID,
		"seatNumbers":   seats,
		"passenger":     map[string]string{"name": "Aigerim", "phone": "+77015550101"},
		"paymentMethod": method,
	}
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["error"])
	return body["kind"]
}

func TestCheckout(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodPost, "/api/checkout", checkoutBody(1, "cash", 1, "2"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, []string{"1", "2"}, resp.Seats)
	assert.Equal(t, models.BookingConfirmed, resp.Status)
	assert.Equal(t, int64(200000), resp.TotalAmount)
	assert.Equal(t, "Astana", resp.Route.From)

	w = perform(r, http.MethodPost, "/api/checkout", checkoutBody(1, "card", 2, 3))
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "conflict", errorKind(t, w))
}

func TestCheckout_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   interface{}
		status int
		kind   string
	}{
		{"malformed json", `{"tripId": `, http.StatusBadRequest, "validation"},
		{"missing trip", checkoutBody(0, "cash", 1), http.StatusBadRequest, "validation"},
		{"no seats", checkoutBody(1, "cash"), http.StatusBadRequest, "validation"},
		{"unknown method", checkoutBody(1, "barter", 1), http.StatusBadRequest, "validation"},
		{"unknown trip", checkoutBody(42, "cash", 1), http.StatusNotFound, "not_found"},
		{"seat out of range", checkoutBody(1, "cash", 7), http.StatusUnprocessableEntity, "capacity"},
		{"negative seat", checkoutBody(1, "cash", -1), http.StatusUnprocessableEntity, "capacity"},
		{"negative seat string", checkoutBody(1, "cash", "-2"), http.StatusUnprocessableEntity, "capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupRouter(t)
			w := perform(r, http.MethodPost, "/api/checkout", tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.kind, errorKind(t, w))
		})
	}
}

func TestSeatMap(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodPost, "/api/checkout", checkoutBody(1, "bank_transfer", 4))
	require.Equal(t, http.StatusCreated, w.Code)

	w = perform(r, http.MethodGet, "/api/trips/1/seats", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var seatMap models.SeatMapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seatMap))
	assert.Equal(t, 6, seatMap.SeatCount)
	assert.Equal(t, 5, seatMap.Available)
	require.Len(t, seatMap.Seats, 6)
	assert.Equal(t, models.SeatHeld, seatMap.Seats[3].Status)

	w = perform(r, http.MethodGet, "/api/trips/abc/seats", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodGet, "/api/trips/9/seats", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBookingLifecycle(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodPost, "/api/checkout", checkoutBody(1, "virtual_account", 5))
	require.Equal(t, http.StatusCreated, w.Code)
	var resp models.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.BookingPending, resp.Status)
	require.NotNil(t, resp.HoldExpiresAt)

	w = perform(r, http.MethodPost, "/api/payments/notifications",
		models.PaymentNotificationPayload{BookingID: resp.BookingID, Status: "refunded?"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = perform(r, http.MethodPost, "/api/payments/notifications",
		models.PaymentNotificationPayload{BookingID: resp.BookingID, Status: "paid"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = perform(r, http.MethodGet, "/api/bookings/"+resp.BookingID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view models.BookingView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	assert.Equal(t, models.BookingConfirmed, view.Booking.Status)
	require.NotNil(t, view.Payment)
	assert.Equal(t, models.PaymentPaid, view.Payment.Status)

	w = perform(r, http.MethodPatch, "/api/bookings/"+resp.BookingID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)

	// cancelling twice is a no-op
	w = perform(r, http.MethodPatch, "/api/bookings/"+resp.BookingID+"/cancel", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(r, http.MethodPost, "/api/checkout", checkoutBody(1, "cash", 5))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestBookings_NotFound(t *testing.T) {
	r := setupRouter(t)

	w := perform(r, http.MethodGet, "/api/bookings/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodPatch, "/api/bookings/missing/cancel", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodPost, "/api/payments/notifications",
		models.PaymentNotificationPayload{BookingID: "missing", Status: "paid"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = perform(r, http.MethodPost, "/api/payments/notifications", `{"status": "paid"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// ids that are not UUIDs are a plain miss
	w = perform(r, http.MethodGet, "/api/bookings/abc", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorKind(t, w))
}
