package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Payload is the variant-specific data of an Event. The set of
// implementations is closed; each one belongs to specific event types.
type Payload interface {
	belongsTo(t EventType) bool
}

// PayloadMatches reports whether p is the payload shape for t.
func PayloadMatches(t EventType, p Payload) bool {
	return p.belongsTo(t)
}

// NewPayload returns an empty payload of the shape used by t, or nil.
func NewPayload(t EventType) Payload {
	switch t {
	case TypeReservation:
		return &ReservationData{}
	case TypeCustomer:
		return &CustomerData{}
	case TypeRoom:
		return &RoomData{}
	case TypeCheckIn, TypeCheckOut:
		return &StayData{}
	case TypeAnalytics:
		return &AnalyticsData{}
	case TypeSystem:
		return &SystemData{}
	}
	return nil
}

type ReservationData struct {
	ReservationID string          `json:"reservation_id"`
	GuestID       string          `json:"guest_id,omitempty"`
	GuestName     string          `json:"guest_name,omitempty"`
	RoomNumber    string          `json:"room_number,omitempty"`
	RoomType      string          `json:"room_type,omitempty"`
	CheckInDate   string          `json:"check_in_date,omitempty"`
	CheckOutDate  string          `json:"check_out_date,omitempty"`
	Guests        int             `json:"guests,omitempty"`
	Status        string          `json:"status,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Currency      string          `json:"currency,omitempty"`
	Channel       string          `json:"channel,omitempty"`
}

func (*ReservationData) belongsTo(t EventType) bool { return t == TypeReservation }

type CustomerData struct {
	CustomerID     string `json:"customer_id"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Name           string `json:"name,omitempty"`
	MembershipTier string `json:"membership_tier,omitempty"`
	PreviousTier   string `json:"previous_tier,omitempty"`
	Points         int64  `json:"points,omitempty"`
	PointsDelta    int64  `json:"points_delta,omitempty"`
}

func (*CustomerData) belongsTo(t EventType) bool { return t == TypeCustomer }

type RoomData struct {
	RoomNumber     string `json:"room_number"`
	Floor          int    `json:"floor,omitempty"`
	RoomType       string `json:"room_type,omitempty"`
	Status         string `json:"status,omitempty"`
	PreviousStatus string `json:"previous_status,omitempty"`
	Reason         string `json:"reason,omitempty"`
	HousekeeperID  string `json:"housekeeper_id,omitempty"`
}

func (*RoomData) belongsTo(t EventType) bool { return t == TypeRoom }

// StayData is shared by check-in and check-out events.
type StayData struct {
	ReservationID string          `json:"reservation_id"`
	GuestID       string          `json:"guest_id,omitempty"`
	RoomNumber    string          `json:"room_number"`
	KeyCards      int             `json:"key_cards,omitempty"`
	FinalBill     decimal.Decimal `json:"final_bill"`
	Currency      string          `json:"currency,omitempty"`
	At            time.Time       `json:"at"`
	StaffID       string          `json:"staff_id,omitempty"`
}

func (*StayData) belongsTo(t EventType) bool { return t == TypeCheckIn || t == TypeCheckOut }

type AnalyticsData struct {
	ReportType  string            `json:"report_type"`
	PeriodStart string            `json:"period_start,omitempty"`
	PeriodEnd   string            `json:"period_end,omitempty"`
	Metrics     map[string]string `json:"metrics,omitempty"`
}

func (*AnalyticsData) belongsTo(t EventType) bool { return t == TypeAnalytics }

type SystemData struct {
	Component string            `json:"component"`
	Message   string            `json:"message,omitempty"`
	Severity  string            `json:"severity,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

func (*SystemData) belongsTo(t EventType) bool { return t == TypeSystem }
