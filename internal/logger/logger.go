package logger

import (
	"go.uber.org/zap"
)

func New(environment string) (*zap.Logger, error) {
	switch environment {
	case "production", "prod":
		return zap.NewProduction()
	case "test":
		return zap.NewExample(), nil
	default:
		return zap.NewDevelopment()
	}
}

func MustNew(environment string) *zap.Logger {
	return zap.Must(New(environment))
}
