package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// SeatIdentifier - номер места, принимает как строку, так и число
type SeatIdentifier string

// UnmarshalJSON поддерживает парсинг номера места из строки и целого числа
func (si *SeatIdentifier) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*si = SeatIdentifier(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid seat number: %s", string(data))
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("invalid seat number: %s", n.String())
	}
	*si = SeatIdentifier(n.String())
	return nil
}

// String возвращает строковое представление номера места
func (si SeatIdentifier) String() string {
	return string(si)
}

// StopPair - пара остановок посадки и высадки для сегментной цены
type StopPair struct {
	PickupID  *int64 `json:"pickupId"`
	DropoffID *int64 `json:"dropoffId"`
}

// CheckoutRequest - модель запроса на покупку мест
type CheckoutRequest struct {
	TripID        int64            `json:"tripId" binding:"required"`
	SeatNumbers   []SeatIdentifier `json:"seatNumbers"`
	Passenger     Passenger        `json:"passenger"`
	PaymentMethod string           `json:"paymentMethod" binding:"required"`
	Stops         *StopPair        `json:"stops,omitempty"`
}

// RouteSnapshot - краткое описание маршрута для ответа
type RouteSnapshot struct {
	From        string `json:"from"`
	To          string `json:"to"`
	DurationMin int    `json:"durationMin"`
}

// TimesSnapshot - время отправления и прибытия
type TimesSnapshot struct {
	DepartureTime time.Time `json:"departureTime"`
	ArrivalTime   time.Time `json:"arrivalTime"`
}

// BusSnapshot - описание автобуса для ответа
type BusSnapshot struct {
	BusType   string `json:"busType"`
	SeatCount int    `json:"seatCount"`
}

// CheckoutResponse - модель ответа при успешной покупке
type CheckoutResponse struct {
	BookingID     string        `json:"bookingId"`
	PaymentID     string        `json:"paymentId"`
	Status        BookingStatus `json:"status"`
	Route         RouteSnapshot `json:"route"`
	Times         TimesSnapshot `json:"times"`
	Bus           BusSnapshot   `json:"bus"`
	Seats         []string      `json:"seats"`
	Passenger     Passenger     `json:"passenger"`
	PricePerSeat  int64         `json:"pricePerSeat"`
	TotalAmount   int64         `json:"totalAmount"`
	PaymentMethod string        `json:"paymentMethod"`
	HoldExpiresAt *time.Time    `json:"holdExpiresAt,omitempty"`
}

// SeatMapItem - элемент карты мест
type SeatMapItem struct {
	Label  string     `json:"label"`
	Status SeatStatus `json:"status"`
}

// SeatMapResponse - карта мест рейса
type SeatMapResponse struct {
	TripID    int64         `json:"tripId"`
	SeatCount int           `json:"seatCount"`
	Available int           `json:"available"`
	Seats     []SeatMapItem `json:"seats"`
}

// BookingView - бронирование вместе с платежом
type BookingView struct {
	Booking *Booking `json:"booking"`
	Payment *Payment `json:"payment,omitempty"`
}

// PaymentNotificationPayload - уведомление о результате асинхронного платежа
type PaymentNotificationPayload struct {
	BookingID string `json:"bookingId" binding:"required"`
	Status    string `json:"status" binding:"required"`
}
