package app

import (
	"context"

	"github.com/Brownie44l1/ripeness-api/internal/classifier"
	"github.com/Brownie44l1/ripeness-api/internal/db/models"
	"github.com/Brownie44l1/ripeness-api/internal/filestorage"
	"go.uber.org/zap"
)

// Record stores the image and its verdict when history is enabled. It returns
// nil without error when it is not.
func (app *App) Record(ctx context.Context, v classifier.Verdict, file filestorage.FileInfo) (*models.Classification, error) {
	if app.ClassificationRepository == nil {
		return nil, nil
	}

	rec := &models.Classification{
		Status:      string(v.Status),
		Label:       v.Label,
		Confidence:  v.Confidence,
		Message:     v.Message,
		ImageHash:   file.Name,
		ContentType: file.ContentType,
	}

	if app.storage != nil {
		key, err := app.storage.Upload(ctx, file)
		if err != nil {
			// keep the verdict without its image
			app.Logger.Warn("failed to store image", zap.String("hash", file.Name), zap.Error(err))
		} else {
			rec.ImageKey = key
		}
	}

	return app.ClassificationRepository.Create(ctx, rec)
}
