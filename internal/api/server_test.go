package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"seatline/internal/config"
	"seatline/internal/models"
)

const testSecret = "test-secret"

func testConfig() *config.Config {
	return &config.Config{
		Port:    "0",
		GinMode: "test",
		Auth:    config.AuthConfig{JWTSecret: testSecret},
		Reaper: config.ReaperConfig{
			TTL:      2 * time.Minute,
			Interval: time.Hour,
		},
		Checkout: config.CheckoutConfig{
			CommitStrategy: "auto",
			StoreBackend:   config.StoreMemory,
			NotifyBackend:  config.NotifyLog,
			NotifyTimeout:  time.Second,
			HoldTTL:        2 * time.Minute,
		},
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	s, err := NewServer(testConfig())
	require.NoError(t, err)
	t.Cleanup(s.Cleanup)
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}, header http.Header) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func TestNewServer_MemoryRunsReaperInProcess(t *testing.T) {
	s := newTestServer(t)
	assert.NotNil(t, s.Reaper())
	assert.Equal(t, "transactional", s.Services().Checkout.Strategy())
}

func TestNewServer_RejectsUnknownBackends(t *testing.T) {
	cfg := testConfig()
	cfg.Checkout.StoreBackend = "mongo"
	_, err := NewServer(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Checkout.CommitStrategy = "optimistic"
	_, err = NewServer(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Checkout.NotifyBackend = "pigeon"
	_, err = NewServer(cfg)
	assert.Error(t, err)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	w := doJSON(t, s, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"memory"`)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = doJSON(t, s, http.MethodGet, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "seatline_")
}

func TestCheckout_AttachesTokenSubject(t *testing.T) {
	s := newTestServer(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	req := models.CheckoutRequest{
		TripID:        1,
		SeatNumbers:   []models.SeatIdentifier{"7"},
		Passenger:     models.Passenger{Name: "Aigerim", Phone: "+77015550101"},
		PaymentMethod: models.MethodCard,
	}
	w := doJSON(t, s, http.MethodPost, "/api/checkout", req, http.Header{"Authorization": {"Bearer " + token}})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var resp models.CheckoutResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

	w = doJSON(t, s, http.MethodGet, "/api/bookings/"+resp.BookingID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	var view models.BookingView
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &view))
	require.NotNil(t, view.Booking.UserID)
	assert.Equal(t, "user-42", *view.Booking.UserID)
}

func TestCheckout_RejectsForgedToken(t *testing.T) {
	s := newTestServer(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "user-42"}).SignedString([]byte("other"))
	require.NoError(t, err)

	req := models.CheckoutRequest{
		TripID:        1,
		SeatNumbers:   []models.SeatIdentifier{"8"},
		Passenger:     models.Passenger{Name: "Aigerim", Phone: "+77015550101"},
		PaymentMethod: models.MethodCard,
	}
	w := doJSON(t, s, http.MethodPost, "/api/checkout", req, http.Header{"Authorization": {"Bearer " + token}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = doJSON(t, s, http.MethodGet, "/api/trips/1/seats", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var seatMap models.SeatMapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &seatMap))
	assert.Equal(t, seatMap.SeatCount, seatMap.Available)
}
