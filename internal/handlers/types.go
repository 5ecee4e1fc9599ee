package handlers

import "github.com/Brownie44l1/ripeness-api/internal/classifier"

type PredictionRequest struct {
	Image     []float32 `json:"image"`
	Threshold *float64  `json:"threshold,omitempty"`
}

type ClassifyResponse struct {
	classifier.Verdict
	// ID is the history record id when history is enabled.
	ID string `json:"id,omitempty"`
}
