package models

import "time"

// Booking lifecycle statuses.
const (
	StatusPending     = "pending"
	StatusConfirmed   = "confirmed"
	StatusInProgress  = "in-progress"
	StatusCompleted   = "completed"
	StatusCancelled   = "cancelled"
	StatusUpcoming    = "upcoming"
	StatusFailed      = "failed"
	StatusNotProvided = "not-provided"
)

// Booking represents one service request/contract. Worker and broker identity
// is denormalized onto the document at acceptance time; there is no relational
// foreign key, so lookups go through the identity resolver.
type Booking struct {
	ID          string `bson:"id" json:"id"`
	Service     string `bson:"service" json:"service"`
	Date        string `bson:"date" json:"date"` // "YYYY-MM-DD"
	Time        string `bson:"time" json:"time"`
	Location    string `bson:"location,omitempty" json:"location,omitempty"`
	Description string `bson:"description,omitempty" json:"description,omitempty"`

	// Customer snapshot.
	CustomerID   string `bson:"customer_id" json:"customer_id"`
	CustomerName string `bson:"customer_name" json:"customer_name"`

	// Worker snapshot, set on acceptance.
	WorkerID       string   `bson:"worker_id,omitempty" json:"worker_id,omitempty"`
	WorkerName     string   `bson:"worker_name,omitempty" json:"worker_name,omitempty"`
	WorkerEmail    string   `bson:"worker_email,omitempty" json:"worker_email,omitempty"`
	WorkerPhone    string   `bson:"worker_phone,omitempty" json:"worker_phone,omitempty"`
	WorkerServices []string `bson:"worker_services,omitempty" json:"worker_services,omitempty"`

	// Workers that declined this booking; meaningful only while pending.
	RejectedByWorkerIDs []string `bson:"rejected_by_worker_ids,omitempty" json:"rejected_by_worker_ids,omitempty"`

	// Broker attribution, copied from the accepting worker's broker link.
	BrokerID   string `bson:"broker_id,omitempty" json:"broker_id,omitempty"`
	BrokerCode string `bson:"broker_code,omitempty" json:"broker_code,omitempty"`
	BrokerName string `bson:"broker_name,omitempty" json:"broker_name,omitempty"`

	// Money fields. Amount is the final payable (original minus discount).
	OriginalAmount         float64 `bson:"original_amount" json:"original_amount"`
	DiscountPercent        float64 `bson:"discount_percent" json:"discount_percent"`
	DiscountAmount         float64 `bson:"discount_amount" json:"discount_amount"`
	Amount                 float64 `bson:"amount" json:"amount"`
	BrokerCommissionRate   float64 `bson:"broker_commission_rate" json:"broker_commission_rate"`
	BrokerCommissionAmount float64 `bson:"broker_commission_amount" json:"broker_commission_amount"`

	Status            string    `bson:"status" json:"status"`
	Rating            int       `bson:"rating,omitempty" json:"rating,omitempty"` // 1-5
	Feedback          string    `bson:"feedback,omitempty" json:"feedback,omitempty"`
	HiddenForCustomer bool      `bson:"hidden_for_customer,omitempty" json:"hidden_for_customer,omitempty"`
	CreatedAt         time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time `bson:"updated_at" json:"updated_at"`
}

// HasAssignedWorker reports whether any worker snapshot is present.
func (b *Booking) HasAssignedWorker() bool {
	return b.WorkerID != "" || b.WorkerEmail != "" || b.WorkerName != ""
}
