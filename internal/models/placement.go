package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PlacementState is the lifecycle of a placement test.
type PlacementState string

// Placement states.
const (
	PlacementPendingOral     PlacementState = "pending_oral"
	PlacementPendingLMS      PlacementState = "pending_lms"
	PlacementPendingDecision PlacementState = "pending_decision"
	PlacementConsolidated    PlacementState = "consolidated"
	PlacementCancelled       PlacementState = "cancelled"
)

// PlacementTest aggregates oral and LMS scores for an incoming student.
type PlacementTest struct {
	ID              string              `db:"id" json:"id"`
	StudentID       *string             `db:"student_id" json:"student_id,omitempty"`
	StudentCode     string              `db:"student_code" json:"student_code"`
	State           PlacementState      `db:"state" json:"state"`
	OralScore       decimal.NullDecimal `db:"oral_score" json:"oral_score"`
	LMSScore        decimal.Decimal     `db:"lms_score" json:"lms_score"`
	GrammarScore    decimal.Decimal     `db:"grammar_score" json:"grammar_score"`
	ListeningScore  decimal.Decimal     `db:"listening_score" json:"listening_score"`
	ReadingScore    decimal.Decimal     `db:"reading_score" json:"reading_score"`
	FinalScore      decimal.NullDecimal `db:"final_score" json:"final_score"`
	RecommendedUnit *int                `db:"recommended_unit" json:"recommended_unit,omitempty"`
	Advisor         *string             `db:"advisor" json:"advisor,omitempty"`
	LMSReceivedAt   *time.Time          `db:"lms_received_at" json:"lms_received_at,omitempty"`
	ConsolidatedAt  *time.Time          `db:"consolidated_at" json:"consolidated_at,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at" json:"updated_at"`
}

// LMSScores are the results reported by the LMS webhook.
type LMSScores struct {
	LMS       decimal.Decimal
	Grammar   decimal.Decimal
	Listening decimal.Decimal
	Reading   decimal.Decimal
}

// PlacementDecision is the outcome of consolidation.
type PlacementDecision struct {
	FinalScore      decimal.Decimal
	RecommendedUnit int
	Advisor         string
}
