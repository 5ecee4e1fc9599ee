package server

import (
	"github.com/Brownie44l1/ripeness-api/internal/app"
	"github.com/Brownie44l1/ripeness-api/internal/handlers"
)

func (s *Server) SetupRoutes(app *app.App) {
	h := handlers.NewHandler(app)

	s.ginEngine.GET("/health", h.Health)

	apiV1 := s.ginEngine.Group("/api/v1")

	apiV1.GET("/labels", h.Labels)
	apiV1.POST("/classify", h.Classify)
	apiV1.POST("/predict", h.Predict)

	apiV1.GET("/history", h.History)
	apiV1.GET("/history/:id", h.HistoryByID)
}
