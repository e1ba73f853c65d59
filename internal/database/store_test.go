package database_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/orbit-chat/orbit/internal/database"
)

func newTestStore(t *testing.T) database.Store {
	t.Helper()
	db, err := database.NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	return database.NewStore(db, nil)
}

func newUpload() *database.Upload {
	return &database.Upload{
		Filename: "chat.txt",
		Platform: "whatsapp",
	}
}

func TestCreateAndGetUpload(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	upload := newUpload()
	if err := store.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}
	if upload.ID == 0 {
		t.Error("CreateUpload did not assign an id")
	}
	if upload.SessionKey == "" {
		t.Error("CreateUpload did not assign a session key")
	}
	if upload.Status != database.UploadStatusProcessing {
		t.Errorf("Status = %q, want processing default", upload.Status)
	}
	if upload.ExpiresAt.IsZero() {
		t.Error("CreateUpload did not default expires_at")
	}

	got, err := store.GetUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("GetUpload() error = %v", err)
	}
	if got == nil || got.Filename != "chat.txt" {
		t.Errorf("GetUpload() = %+v", got)
	}

	byKey, err := store.GetUploadBySessionKey(ctx, upload.SessionKey)
	if err != nil {
		t.Fatalf("GetUploadBySessionKey() error = %v", err)
	}
	if byKey == nil || byKey.ID != upload.ID {
		t.Errorf("GetUploadBySessionKey() = %+v", byKey)
	}

	missing, err := store.GetUpload(ctx, 9999)
	if err != nil || missing != nil {
		t.Errorf("GetUpload(missing) = (%+v, %v), want (nil, nil)", missing, err)
	}
}

func TestCreateUploadValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.CreateUpload(ctx, nil); err == nil {
		t.Error("CreateUpload(nil) error = nil, want error")
	}
	if err := store.CreateUpload(ctx, &database.Upload{Platform: "whatsapp"}); err == nil {
		t.Error("CreateUpload without filename error = nil, want error")
	}
	if err := store.CreateUpload(ctx, &database.Upload{Filename: "a.txt"}); err == nil {
		t.Error("CreateUpload without platform error = nil, want error")
	}
}

func TestUpdateUploadStatus(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	upload := newUpload()
	if err := store.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}

	if err := store.UpdateUploadStatus(ctx, upload.ID, database.UploadStatusReady, 42); err != nil {
		t.Fatalf("UpdateUploadStatus() error = %v", err)
	}
	got, err := store.GetUpload(ctx, upload.ID)
	if err != nil {
		t.Fatalf("GetUpload() error = %v", err)
	}
	if got.Status != database.UploadStatusReady || got.MessageCount != 42 {
		t.Errorf("upload after update = %+v", got)
	}

	if err := store.UpdateUploadStatus(ctx, upload.ID, "bogus", 0); err == nil {
		t.Error("invalid status accepted")
	}
	if err := store.UpdateUploadStatus(ctx, 9999, database.UploadStatusReady, 0); err == nil {
		t.Error("unknown upload accepted")
	}
}

func TestSaveAndGetMessages(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	upload := newUpload()
	if err := store.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}

	ts := time.Date(2023, 6, 25, 11, 0, 0, 0, time.UTC)
	msgs := []*database.Message{
		{UploadID: upload.ID, Seq: 0, SourceID: "wa-0", Sender: "Alice", Content: "hi", Timestamp: ts, Sentiment: 0.4, Classification: "statement", WeekID: "2023-W25", MonthID: "2023-06", Year: 2023, WordCount: 1},
		{UploadID: upload.ID, Seq: 1, SourceID: "wa-1", Sender: "Bob", Content: "hello", Timestamp: ts.Add(time.Minute), Classification: "statement", WeekID: "2023-W25", MonthID: "2023-06", Year: 2023, WordCount: 1},
	}
	if err := store.SaveMessages(ctx, msgs); err != nil {
		t.Fatalf("SaveMessages() error = %v", err)
	}

	got, err := store.GetMessages(ctx, upload.ID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].Sender != "Alice" || got[1].Sender != "Bob" {
		t.Errorf("messages out of seq order: %q, %q", got[0].Sender, got[1].Sender)
	}
	if got[0].Sentiment != 0.4 {
		t.Errorf("Sentiment = %v, want 0.4", got[0].Sentiment)
	}

	if err := store.SaveMessages(ctx, []*database.Message{{Seq: 0}}); err == nil {
		t.Error("message without upload_id accepted")
	}
	if err := store.SaveMessages(ctx, nil); err != nil {
		t.Errorf("SaveMessages(empty) error = %v, want nil", err)
	}
}

func TestSaveAndGetReport(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	upload := newUpload()
	if err := store.CreateUpload(ctx, upload); err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}

	report := &database.Report{UploadID: upload.ID, Kind: database.ReportKindStats, Payload: `{"totalMessages":1}`}
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport() error = %v", err)
	}

	// Upsert replaces the payload for the same upload and kind.
	report.Payload = `{"totalMessages":2}`
	if err := store.SaveReport(ctx, report); err != nil {
		t.Fatalf("SaveReport(upsert) error = %v", err)
	}

	got, err := store.GetReport(ctx, upload.ID, database.ReportKindStats)
	if err != nil {
		t.Fatalf("GetReport() error = %v", err)
	}
	if got == nil || got.Payload != `{"totalMessages":2}` {
		t.Errorf("GetReport() payload = %s", got.Payload)
	}

	missing, err := store.GetReport(ctx, upload.ID, database.ReportKindCards)
	if err != nil || missing != nil {
		t.Errorf("GetReport(missing) = (%+v, %v), want (nil, nil)", missing, err)
	}

	if err := store.SaveReport(ctx, &database.Report{UploadID: upload.ID, Kind: "bogus"}); err == nil {
		t.Error("invalid report kind accepted")
	}
}

func TestDeleteExpiredUploads(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()

	expired := newUpload()
	expired.ExpiresAt = now.Add(-time.Hour)
	if err := store.CreateUpload(ctx, expired); err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}
	if err := store.SaveMessages(ctx, []*database.Message{{UploadID: expired.ID, Sender: "A", Content: "x", Timestamp: now}}); err != nil {
		t.Fatalf("SaveMessages() error = %v", err)
	}

	live := newUpload()
	live.ExpiresAt = now.Add(time.Hour)
	if err := store.CreateUpload(ctx, live); err != nil {
		t.Fatalf("CreateUpload() error = %v", err)
	}

	removed, err := store.DeleteExpiredUploads(ctx, now)
	if err != nil {
		t.Fatalf("DeleteExpiredUploads() error = %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}

	if got, _ := store.GetUpload(ctx, expired.ID); got != nil {
		t.Error("expired upload survived")
	}
	if got, _ := store.GetUpload(ctx, live.ID); got == nil {
		t.Error("live upload removed")
	}
	// Cascade removed the expired upload's messages.
	msgs, err := store.GetMessages(ctx, expired.ID)
	if err != nil {
		t.Fatalf("GetMessages() error = %v", err)
	}
	if len(msgs) != 0 {
		t.Errorf("orphan messages = %d, want 0", len(msgs))
	}
}

func TestRunSQLMaintenance(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	if err := store.RunSQLMaintenance(context.Background()); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}
}
