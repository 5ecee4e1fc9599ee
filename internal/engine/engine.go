package engine

import (
	"github.com/Brownie44l1/ripeness-api/internal/config"
	"github.com/Brownie44l1/ripeness-api/internal/engine/onnx"
	"github.com/Brownie44l1/ripeness-api/internal/engine/tflite"
	"github.com/Brownie44l1/ripeness-api/internal/model"
	"go.uber.org/zap"
)

// Runtimes returns every inference engine compiled into the binary.
func Runtimes(cfg config.ModelConfig, logger *zap.Logger) model.Runtimes {
	return model.Runtimes{
		"tflite": &tflite.Runtime{
			NumThreads: cfg.NumThreads,
			Logger:     logger,
		},
		"onnx": &onnx.Runtime{
			LibraryPath: cfg.OnnxLibrary,
			NumThreads:  cfg.NumThreads,
		},
	}
}
