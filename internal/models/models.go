package models

import "time"

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
	PaymentSuccess PaymentStatus = "success"
	PaymentFailed  PaymentStatus = "failed"
)

type PhotoshootStatus string

const (
	PhotoshootSuccess PhotoshootStatus = "success"
	PhotoshootFailed  PhotoshootStatus = "failed"
)

type Account struct {
	ID                int64
	TelegramID        int64
	Username          string
	Balance           int
	PhotoshootCredits int
	IsAdmin           bool
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// StarOffer is a purchasable credit bundle priced in Telegram Stars.
type StarOffer struct {
	Code        string
	Title       string
	Description string
	AmountStars int
	Credits     int
}

type StarPayment struct {
	ID               int64
	TelegramID       int64
	OfferCode        string
	AmountStars      int
	Credits          int
	Status           PaymentStatus
	Payload          string
	TelegramChargeID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PhotoshootLog is an append-only audit record of one generation attempt.
type PhotoshootLog struct {
	ID           int64
	TelegramID   int64
	StyleTitle   string
	Status       PhotoshootStatus
	CostUnits    int
	CostCredits  int
	Provider     string
	ErrorMessage string
	CreatedAt    time.Time
}

type StylePrompt struct {
	ID            int64
	Title         string
	Description   string
	Prompt        string
	ImageFilename string
	IsActive      bool
	CreatedAt     time.Time
}

// DebitOutcome reports whether a debit succeeded and which pool paid for it.
// Exactly one of CostUnits/CostCredits is non-zero on success.
type DebitOutcome struct {
	OK          bool
	CostUnits   int
	CostCredits int
}

type PhotoshootReport struct {
	Days           int `json:"days"`
	Total          int `json:"total"`
	Success        int `json:"success"`
	Failed         int `json:"failed"`
	SumCostUnits   int `json:"sum_cost_units"`
	SumCostCredits int `json:"sum_cost_credits"`
}

type PaymentsReport struct {
	Days       int `json:"days"`
	Total      int `json:"total"`
	SumStars   int `json:"sum_stars"`
	SumCredits int `json:"sum_credits"`
}
