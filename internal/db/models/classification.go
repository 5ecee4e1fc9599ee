package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Classification is one recorded verdict together with the image it was
// computed for.
type Classification struct {
	bun.BaseModel `bun:"table:classifications"`

	ID          uuid.UUID `bun:"id,pk,type:varchar(36)" json:"id"`
	Status      string    `bun:",notnull" json:"status"`
	Label       string    `bun:",nullzero" json:"label,omitempty"`
	Confidence  float64   `json:"confidence,omitempty"`
	Message     string    `bun:",nullzero" json:"message,omitempty"`
	ImageHash   string    `bun:",notnull" json:"image_hash"`
	ContentType string    `bun:",nullzero" json:"content_type,omitempty"`
	ImageKey    string    `bun:",nullzero" json:"image_key,omitempty"`
	CreatedAt   time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"created_at"`
}
