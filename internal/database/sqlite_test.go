package database_test

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"wkyt-go/internal/database"
	"wkyt-go/internal/lifegraph"
	"wkyt-go/internal/testutil"
)

func testItem(sourceID string, ts time.Time) *lifegraph.Item {
	item := lifegraph.NewItem(sourceID, "conn-test", lifegraph.KindMessage, map[string]any{"subject": "s"})
	item.Timestamp = ts
	return item
}

func TestSaveAndGetAllItems(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 123456789, time.UTC)
	item := testItem("src-1", ts)
	item.RawPayload = json.RawMessage(`{"original":true}`)

	if err := storage.SaveItems([]*lifegraph.Item{item}); err != nil {
		t.Fatalf("SaveItems() error = %v", err)
	}

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1", len(items))
	}

	got := items[0]
	if got.ID != item.ID {
		t.Errorf("ID = %q, want %q", got.ID, item.ID)
	}
	if got.SourceID != "src-1" {
		t.Errorf("SourceID = %q, want %q", got.SourceID, "src-1")
	}
	if got.ConnectorID != "conn-test" {
		t.Errorf("ConnectorID = %q, want %q", got.ConnectorID, "conn-test")
	}
	if got.Kind != lifegraph.KindMessage {
		t.Errorf("Kind = %v, want %v", got.Kind, lifegraph.KindMessage)
	}
	if !got.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", got.Timestamp, ts)
	}
	if !got.IngestedAt.Equal(item.IngestedAt) {
		t.Errorf("IngestedAt = %v, want %v", got.IngestedAt, item.IngestedAt)
	}
	props, ok := got.Properties.(map[string]any)
	if !ok {
		t.Fatalf("Properties = %T, want map", got.Properties)
	}
	if props["subject"] != "s" {
		t.Errorf("properties subject = %v, want %q", props["subject"], "s")
	}
	if string(got.RawPayload) != `{"original":true}` {
		t.Errorf("RawPayload = %s, want %s", got.RawPayload, `{"original":true}`)
	}
}

func TestSaveItemWithoutRawPayload(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if items[0].RawPayload != nil {
		t.Errorf("RawPayload = %s, want nil", items[0].RawPayload)
	}
}

func TestSaveItemOtherKind(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	item := lifegraph.NewItem("src-1", "conn-test", lifegraph.OtherKind("heart_rate"), nil)
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if items[0].Kind != lifegraph.OtherKind("heart_rate") {
		t.Errorf("Kind = %v, want other(heart_rate)", items[0].Kind)
	}
}

func TestSaveItemsUpsertReplaces(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("first SaveItem() error = %v", err)
	}

	item.Properties = map[string]any{"subject": "updated"}
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("second SaveItem() error = %v", err)
	}

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1 (replace, not insert)", len(items))
	}
	props := items[0].Properties.(map[string]any)
	if props["subject"] != "updated" {
		t.Errorf("subject = %v, want %q", props["subject"], "updated")
	}
}

func TestSaveItemsEmptyBatch(t *testing.T) {
	storage := testutil.NewTestStorage(t)
	if err := storage.SaveItems(nil); err != nil {
		t.Errorf("SaveItems(nil) error = %v", err)
	}
}

func TestGetAllItemsOrdering(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	t1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	t2 := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	t3 := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of order; reads must come back newest first.
	batch := []*lifegraph.Item{
		testItem("middle", t2),
		testItem("oldest", t1),
		testItem("newest", t3),
	}
	if err := storage.SaveItems(batch); err != nil {
		t.Fatalf("SaveItems() error = %v", err)
	}

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	want := []string{"newest", "middle", "oldest"}
	if len(items) != len(want) {
		t.Fatalf("len(items) = %d, want %d", len(items), len(want))
	}
	for i, sourceID := range want {
		if items[i].SourceID != sourceID {
			t.Errorf("items[%d].SourceID = %q, want %q", i, items[i].SourceID, sourceID)
		}
	}
}

func TestSaveItemsBatchIsAtomic(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	good := testItem("good", time.Now().UTC())
	bad := testItem("bad", time.Now().UTC())
	bad.Properties = make(chan int) // not serializable

	if err := storage.SaveItems([]*lifegraph.Item{good, bad}); err == nil {
		t.Fatal("SaveItems() with unserializable item should fail")
	}

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0 (batch must roll back entirely)", len(items))
	}
}

func TestGetAllItemsEmptyDatabase(t *testing.T) {
	storage := testutil.NewTestStorage(t)
	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 0 {
		t.Errorf("len(items) = %d, want 0", len(items))
	}
}

// corruptibleStorage opens a storage whose underlying connection the test can
// reach, so rows can be corrupted with raw SQL.
func corruptibleStorage(t *testing.T, clock lifegraph.Clock) (*database.SQLiteStorage, func(query string, args ...any)) {
	t.Helper()

	sqlDB, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("OpenConnection() error = %v", err)
	}

	storage := database.NewSQLiteStorageFromDB(sqlDB, clock, nil)
	if err := storage.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { storage.Close() })

	exec := func(query string, args ...any) {
		t.Helper()
		if _, err := sqlDB.Exec(query, args...); err != nil {
			t.Fatalf("exec %q: %v", query, err)
		}
	}
	return storage, exec
}

func TestGetAllItemsDegradesBadKind(t *testing.T) {
	storage, exec := corruptibleStorage(t, nil)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}
	exec(`UPDATE items SET kind = 'not json at all' WHERE id = ?`, item.ID)

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("len(items) = %d, want 1 (row must degrade, not drop)", len(items))
	}
	if items[0].Kind != lifegraph.OtherKind("parse_error") {
		t.Errorf("Kind = %v, want other(parse_error)", items[0].Kind)
	}
}

func TestGetAllItemsDegradesUnknownKindName(t *testing.T) {
	storage, exec := corruptibleStorage(t, nil)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}
	// Valid JSON string, but not a kind this version knows.
	exec(`UPDATE items SET kind = '"hologram"' WHERE id = ?`, item.ID)

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if items[0].Kind != lifegraph.OtherKind("parse_error") {
		t.Errorf("Kind = %v, want other(parse_error)", items[0].Kind)
	}
}

func TestGetAllItemsDegradesBadProperties(t *testing.T) {
	storage, exec := corruptibleStorage(t, nil)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}
	exec(`UPDATE items SET properties = '{broken' WHERE id = ?`, item.ID)

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if items[0].Properties != nil {
		t.Errorf("Properties = %v, want nil", items[0].Properties)
	}
	// The rest of the row survives.
	if items[0].Kind != lifegraph.KindMessage {
		t.Errorf("Kind = %v, want %v", items[0].Kind, lifegraph.KindMessage)
	}
}

func TestGetAllItemsDegradesBadTimestamp(t *testing.T) {
	clock := testutil.FixedClock()
	storage, exec := corruptibleStorage(t, clock)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}
	exec(`UPDATE items SET timestamp = 'last tuesday' WHERE id = ?`, item.ID)

	items, err := storage.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() error = %v", err)
	}
	if !items[0].Timestamp.Equal(clock.Now()) {
		t.Errorf("Timestamp = %v, want current time %v", items[0].Timestamp, clock.Now())
	}
	// IngestedAt was untouched and still round-trips.
	if !items[0].IngestedAt.Equal(item.IngestedAt) {
		t.Errorf("IngestedAt = %v, want %v", items[0].IngestedAt, item.IngestedAt)
	}
}

func TestSyncRunLifecycle(t *testing.T) {
	clock := testutil.FixedClock()
	storage := testutil.NewTestStorageWithClock(t, clock)

	run, err := storage.CreateSyncRun("conn-a", lifegraph.OpFullSync)
	if err != nil {
		t.Fatalf("CreateSyncRun() error = %v", err)
	}
	if run.ID == 0 {
		t.Error("run.ID = 0, want assigned ID")
	}
	if run.Status != lifegraph.SyncStatusRunning {
		t.Errorf("run.Status = %q, want %q", run.Status, lifegraph.SyncStatusRunning)
	}
	if !run.StartedAt.Equal(clock.Now()) {
		t.Errorf("run.StartedAt = %v, want %v", run.StartedAt, clock.Now())
	}

	clock.Advance(time.Minute)
	if err := storage.FinishSyncRun(run.ID, lifegraph.SyncStatusSuccess, 7); err != nil {
		t.Fatalf("FinishSyncRun() error = %v", err)
	}

	runs, err := storage.ListSyncRuns(10)
	if err != nil {
		t.Fatalf("ListSyncRuns() error = %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("len(runs) = %d, want 1", len(runs))
	}
	got := runs[0]
	if got.Status != lifegraph.SyncStatusSuccess {
		t.Errorf("Status = %q, want %q", got.Status, lifegraph.SyncStatusSuccess)
	}
	if got.ItemCount != 7 {
		t.Errorf("ItemCount = %d, want 7", got.ItemCount)
	}
	if !got.FinishedAt.Equal(clock.Now()) {
		t.Errorf("FinishedAt = %v, want %v", got.FinishedAt, clock.Now())
	}
}

func TestLastSuccessfulSync(t *testing.T) {
	clock := testutil.FixedClock()
	storage := testutil.NewTestStorageWithClock(t, clock)

	if _, ok, err := storage.LastSuccessfulSync("conn-a"); err != nil || ok {
		t.Fatalf("LastSuccessfulSync() on empty db = ok %v, err %v; want false, nil", ok, err)
	}

	// A failed run never becomes the watermark.
	run, err := storage.CreateSyncRun("conn-a", lifegraph.OpFullSync)
	if err != nil {
		t.Fatalf("CreateSyncRun() error = %v", err)
	}
	if err := storage.FinishSyncRun(run.ID, lifegraph.SyncStatusError, 0); err != nil {
		t.Fatalf("FinishSyncRun() error = %v", err)
	}
	if _, ok, err := storage.LastSuccessfulSync("conn-a"); err != nil || ok {
		t.Fatalf("LastSuccessfulSync() after failed run = ok %v, err %v; want false, nil", ok, err)
	}

	clock.Advance(time.Hour)
	successStart := clock.Now()
	run, err = storage.CreateSyncRun("conn-a", lifegraph.OpFullSync)
	if err != nil {
		t.Fatalf("CreateSyncRun() error = %v", err)
	}
	if err := storage.FinishSyncRun(run.ID, lifegraph.SyncStatusSuccess, 3); err != nil {
		t.Fatalf("FinishSyncRun() error = %v", err)
	}

	since, ok, err := storage.LastSuccessfulSync("conn-a")
	if err != nil {
		t.Fatalf("LastSuccessfulSync() error = %v", err)
	}
	if !ok {
		t.Fatal("LastSuccessfulSync() ok = false, want true")
	}
	if !since.Equal(successStart) {
		t.Errorf("watermark = %v, want %v", since, successStart)
	}

	// Other connectors have their own watermark.
	if _, ok, _ := storage.LastSuccessfulSync("conn-b"); ok {
		t.Error("LastSuccessfulSync(conn-b) ok = true, want false")
	}
}

func TestListSyncRunsLimit(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	for i := 0; i < 5; i++ {
		if _, err := storage.CreateSyncRun("conn-a", lifegraph.OpFullSync); err != nil {
			t.Fatalf("CreateSyncRun() error = %v", err)
		}
	}

	runs, err := storage.ListSyncRuns(3)
	if err != nil {
		t.Fatalf("ListSyncRuns() error = %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("len(runs) = %d, want 3", len(runs))
	}
	for i := 1; i < len(runs); i++ {
		if runs[i-1].ID <= runs[i].ID {
			t.Errorf("runs not newest first at index %d: %d then %d", i, runs[i-1].ID, runs[i].ID)
		}
	}
}

func TestMaxSyncRunID(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	id, err := storage.MaxSyncRunID()
	if err != nil {
		t.Fatalf("MaxSyncRunID() error = %v", err)
	}
	if id != 0 {
		t.Errorf("MaxSyncRunID() on empty db = %d, want 0", id)
	}

	run, err := storage.CreateSyncRun("conn-a", lifegraph.OpFullSync)
	if err != nil {
		t.Fatalf("CreateSyncRun() error = %v", err)
	}

	id, err = storage.MaxSyncRunID()
	if err != nil {
		t.Fatalf("MaxSyncRunID() error = %v", err)
	}
	if id != run.ID {
		t.Errorf("MaxSyncRunID() = %d, want %d", id, run.ID)
	}
}

func TestBackupTo(t *testing.T) {
	storage := testutil.NewTestStorage(t)

	item := testItem("src-1", time.Now().UTC())
	if err := storage.SaveItem(item); err != nil {
		t.Fatalf("SaveItem() error = %v", err)
	}

	backupPath := filepath.Join(t.TempDir(), "backup.db")
	if err := storage.BackupTo(backupPath); err != nil {
		t.Fatalf("BackupTo() error = %v", err)
	}

	restored, err := database.NewSQLiteStorage(backupPath, nil, nil)
	if err != nil {
		t.Fatalf("opening backup: %v", err)
	}
	defer restored.Close()

	items, err := restored.GetAllItems()
	if err != nil {
		t.Fatalf("GetAllItems() on backup error = %v", err)
	}
	if len(items) != 1 {
		t.Errorf("backup len(items) = %d, want 1", len(items))
	}
}

func TestInitIsIdempotent(t *testing.T) {
	storage := testutil.NewTestStorage(t)
	if err := storage.Init(); err != nil {
		t.Errorf("second Init() error = %v", err)
	}
	if err := storage.CheckMigrations(); err != nil {
		t.Errorf("CheckMigrations() error = %v", err)
	}
}
