package dto

import "github.com/google/uuid"

type TemplateResponse struct {
	IdentityID        uuid.UUID `json:"identity_id"`
	PhotoCount        int       `json:"photo_count"`
	RegisteredAt      string    `json:"registered_at"`
	VerificationCount int       `json:"verification_count"`
	LastVerifiedAt    string    `json:"last_verified_at,omitempty"`
}

type MatchResponse struct {
	IdentityID *uuid.UUID `json:"identity_id,omitempty"`
	Similarity float64    `json:"similarity"`
	Accepted   bool       `json:"accepted"`
	Threshold  float64    `json:"threshold"`
}

type RegistrationStatsResponse struct {
	TotalRegistered    int `json:"total_registered"`
	TotalVerifications int `json:"total_verifications"`
	VerifiedLast7Days  int `json:"verified_last_7_days"`
}
