package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/Brownie44l1/ripeness-api/internal/db"
	"github.com/Brownie44l1/ripeness-api/internal/db/models"
	"github.com/uptrace/bun"
)

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	conn, err := db.NewConnection(ctx, "sqlite", dsn, false)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { conn.Close() })

	if err := db.CreateTables(ctx, conn); err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestClassificationCreateAndGet(t *testing.T) {
	ctx := context.Background()
	repo := NewClassificationRepository(newTestDB(t))

	created, err := repo.Create(ctx, &models.Classification{
		Status:      "ok",
		Label:       "matang",
		Confidence:  0.993,
		ImageHash:   "abc123",
		ContentType: "image/jpeg",
	})
	if err != nil {
		t.Fatal(err)
	}
	if created.ID.String() == "00000000-0000-0000-0000-000000000000" {
		t.Fatal("ID not assigned")
	}

	got, err := repo.GetByID(ctx, created.ID.String())
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != created.ID || got.Label != "matang" || got.Confidence != 0.993 || got.ImageHash != "abc123" {
		t.Fatalf("GetByID = %+v", got)
	}
}

func TestClassificationGetMissing(t *testing.T) {
	repo := NewClassificationRepository(newTestDB(t))

	for _, id := range []string{"0b6a1c3e-7d7b-4c43-9a84-6f1f6b2f9d11", "not-a-uuid"} {
		if _, err := repo.GetByID(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID(%q) error = %v, want ErrNotFound", id, err)
		}
	}
}

func TestClassificationList(t *testing.T) {
	ctx := context.Background()
	repo := NewClassificationRepository(newTestDB(t))

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	for i, status := range []string{"ok", "invalid", "error"} {
		if _, err := repo.Create(ctx, &models.Classification{
			Status:    status,
			ImageHash: fmt.Sprintf("h%d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatal(err)
		}
	}

	list, err := repo.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Fatalf("List returned %d rows, want 2", len(list))
	}
	if list[0].Status != "error" || list[1].Status != "invalid" {
		t.Errorf("List order = %s, %s; want newest first", list[0].Status, list[1].Status)
	}

	all, err := repo.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("List(0) returned %d rows, want 3", len(all))
	}
}
