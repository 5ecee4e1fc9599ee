package repository

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("record not found")

type Repository[T any] interface {
	Create(ctx context.Context, arg *T) (*T, error)
	GetByID(ctx context.Context, id string) (*T, error)
}
