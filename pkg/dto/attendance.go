package dto

import "github.com/google/uuid"

type ManualCheckInRequest struct {
	IdentityID uuid.UUID `json:"identity_id" binding:"required"`
}

type AttendanceResponse struct {
	ID         uuid.UUID `json:"id"`
	IdentityID uuid.UUID `json:"identity_id"`
	Date       string    `json:"date"`
	EventAt    string    `json:"event_at,omitempty"`
	Status     string    `json:"status"`
	Method     string    `json:"method"`
	Similarity *float64  `json:"similarity,omitempty"`
	PhotoURL   string    `json:"photo_url,omitempty"`
	CreatedAt  string    `json:"created_at"`
}

type HistoryResponse struct {
	Records []AttendanceResponse `json:"records"`
	Total   int                  `json:"total"`
	Limit   int                  `json:"limit"`
	Offset  int                  `json:"offset"`
}

type StatsResponse struct {
	PresentCount  int     `json:"present_count"`
	LateCount     int     `json:"late_count"`
	AbsentCount   int     `json:"absent_count"`
	TotalDays     int     `json:"total_days"`
	Percentage    float64 `json:"attendance_percentage"`
	CurrentStreak int     `json:"current_streak"`
}

type SummaryResponse struct {
	Date    string `json:"date"`
	Present int    `json:"present"`
	Late    int    `json:"late"`
	Absent  int    `json:"absent"`
}

type SweepRequest struct {
	Date string `json:"date" binding:"required"` // YYYY-MM-DD
}

type SweepResponse struct {
	Date    string `json:"date"`
	Created int    `json:"created"`
}

// WSEvent is a WebSocket message for the live attendance feed.
type WSEvent struct {
	Type string      `json:"type"` // check_in, sweep
	Data interface{} `json:"data,omitempty"`
}
