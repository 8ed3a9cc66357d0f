package models

import "time"

// Audience selects which dashboard channels a booking event fans out to.
const (
	AudienceAll      = "all"
	AudienceCustomer = "customer"
	AudienceWorker   = "worker"
	AudienceBroker   = "broker"
)

// BookingEvent is the realtime payload published to dashboard channels on
// every state-changing transition. Delivery is best-effort.
type BookingEvent struct {
	Action     string    `json:"action"`
	BookingID  string    `json:"booking_id"`
	Status     string    `json:"status"`
	Service    string    `json:"service"`
	CustomerID string    `json:"customer_id,omitempty"`
	WorkerID   string    `json:"worker_id,omitempty"`
	BrokerID   string    `json:"broker_id,omitempty"`
	BrokerCode string    `json:"broker_code,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// ReminderPayload is the asynq task payload for upcoming-booking reminders.
type ReminderPayload struct {
	BookingID  string `json:"booking_id"`
	CustomerID string `json:"customer_id"`
	WorkerID   string `json:"worker_id"`
	Service    string `json:"service"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}
