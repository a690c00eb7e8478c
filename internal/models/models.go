package models

import (
	"fmt"
	"time"
)

// Role is a platform user role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleSupport  Role = "support"
	RolePartner  Role = "partner"
	RoleCustomer Role = "customer"
)

// ParseRole validates a role string.
func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleAdmin, RoleSupport, RolePartner, RoleCustomer:
		return Role(s), nil
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// User is a platform account as stored in the users table.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     *string   `json:"phone,omitempty"`
	Role      Role      `json:"role"`
	Suspended bool      `json:"suspended"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TripStatus is the booking lifecycle state. Transitions are not constrained
// client-side; only membership is validated.
type TripStatus string

const (
	TripPending    TripStatus = "pending"
	TripAccepted   TripStatus = "accepted"
	TripInProgress TripStatus = "in_progress"
	TripCompleted  TripStatus = "completed"
	TripCancelled  TripStatus = "cancelled"
)

// ParseTripStatus validates a trip status string.
func ParseTripStatus(s string) (TripStatus, error) {
	switch TripStatus(s) {
	case TripPending, TripAccepted, TripInProgress, TripCompleted, TripCancelled:
		return TripStatus(s), nil
	}
	return "", fmt.Errorf("unknown trip status: %q", s)
}

// Priority of a booking. Higher sorts first when ordering by priority.
type Priority int

const (
	PriorityNormal Priority = 0
	PriorityHigh   Priority = 1
	PriorityUrgent Priority = 2
)

// ParsePriority validates a priority value.
func ParsePriority(n int) (Priority, error) {
	switch Priority(n) {
	case PriorityNormal, PriorityHigh, PriorityUrgent:
		return Priority(n), nil
	}
	return 0, fmt.Errorf("unknown priority: %d", n)
}

// CustomFee is an admin-defined line item on a booking.
type CustomFee struct {
	Name            string  `json:"name"`
	Amount          float64 `json:"amount"`
	CustomerVisible bool    `json:"customer_visible"`
}

// Trip is a booking row from the trips table.
type Trip struct {
	ID             string      `json:"id"`
	Ref            string      `json:"ref"`
	ScheduledAt    time.Time   `json:"scheduled_at"`
	CustomerName   string      `json:"customer_name"`
	CustomerEmail  string      `json:"customer_email"`
	CustomerPhone  *string     `json:"customer_phone,omitempty"`
	PickupAddress  string      `json:"pickup_address"`
	DropoffAddress string      `json:"dropoff_address"`
	Status         TripStatus  `json:"status"`
	Priority       Priority    `json:"priority"`
	Notes          string      `json:"notes,omitempty"`
	BasePrice      float64     `json:"base_price"`
	CustomFees     []CustomFee `json:"custom_fees,omitempty"`
	LastReminderAt *time.Time  `json:"last_reminder_at,omitempty"`
	DriverID       *string     `json:"driver_id,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`
}

// TotalCharge is the displayed charge: base price plus all custom fees.
// The server never recomputes this; the client owns the figure.
func (t Trip) TotalCharge() float64 {
	total := t.BasePrice
	for _, fee := range t.CustomFees {
		total += fee.Amount
	}
	return total
}

// VerificationStatus of a driver profile.
type VerificationStatus string

const (
	DriverUnverified VerificationStatus = "unverified"
	DriverPending    VerificationStatus = "pending"
	DriverVerified   VerificationStatus = "verified"
	DriverDeclined   VerificationStatus = "declined"
)

// ParseVerificationStatus validates a verification status string.
func ParseVerificationStatus(s string) (VerificationStatus, error) {
	switch VerificationStatus(s) {
	case DriverUnverified, DriverPending, DriverVerified, DriverDeclined:
		return VerificationStatus(s), nil
	}
	return "", fmt.Errorf("unknown verification status: %q", s)
}

// Document is an uploaded driver document.
type Document struct {
	ID        string    `json:"id"`
	DriverID  string    `json:"driver_id"`
	Type      string    `json:"type"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// Driver is a driver profile linked to a partner user.
type Driver struct {
	ID        string             `json:"id"`
	UserID    string             `json:"user_id"`
	Status    VerificationStatus `json:"status"`
	Available bool               `json:"available"`
	Documents []Document         `json:"documents,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// ListingKind tags a driver-screen row.
type ListingKind string

const (
	// ListingProfile is a partner with a driver profile row.
	ListingProfile ListingKind = "profile"
	// ListingPartnerOnly is a partner-role user with no driver row yet.
	// The console offers to materialize a profile for these.
	ListingPartnerOnly ListingKind = "partner_without_profile"
)

// DriverListing is the driver screen's row shape: either a real profile or
// a partner user awaiting one. Exactly one of Profile/Partner is set.
type DriverListing struct {
	Kind    ListingKind `json:"kind"`
	Profile *Driver     `json:"profile,omitempty"`
	Partner *User       `json:"partner,omitempty"`
}

// ActivityLog is an append-only audit record. The console creates these as
// mutation side effects and never edits or deletes them.
type ActivityLog struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	ActorID   string    `json:"actor_id"`
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Payment is a payment row from the payments table.
type Payment struct {
	ID        string    `json:"id"`
	TripID    string    `json:"trip_id"`
	Amount    float64   `json:"amount"`
	Currency  string    `json:"currency"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}
