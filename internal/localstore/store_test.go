package localstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/talekeeper/storysync/internal/model"
)

// setupTestStore opens a store in a temporary directory.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(t.TempDir(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	return store
}

func testStory(id string, createdAt int64) model.Story {
	return model.Story{
		ID:        id,
		Title:     "Story " + id,
		Content:   "Once upon a time",
		Theme:     "friendship",
		ChildName: "Mia",
		CreatedAt: time.Unix(createdAt, 0).UTC(),
	}
}

func TestOpen_EmptyDir(t *testing.T) {
	if _, err := Open("", nil); err == nil {
		t.Fatal("expected error for empty data directory")
	}
}

func TestCollection_AllMissingFile(t *testing.T) {
	store := setupTestStore(t)

	stories, err := store.Stories.All(context.Background())
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(stories) != 0 {
		t.Errorf("expected empty collection, got %d stories", len(stories))
	}
}

func TestCollection_RoundTrip(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	url := "file:///audio/s-1.m4a"
	dur := 95.5
	story := testStory("s-1", 100)
	story.AudioURL = &url
	story.AudioDuration = &dur

	if _, err := store.Stories.Save(ctx, story); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	got, ok, err := store.Stories.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if !ok {
		t.Fatal("Get() did not find saved story")
	}
	if diff := cmp.Diff(story, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	// A fresh store must decode the same value from disk
	reopened, err := Open(store.Dir(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	got, ok, err = reopened.Stories.Get(ctx, "s-1")
	if err != nil || !ok {
		t.Fatalf("Get() after reopen = %v, %v", ok, err)
	}
	if diff := cmp.Diff(story, got); diff != "" {
		t.Errorf("round trip through disk mismatch (-want +got):\n%s", diff)
	}
}

func TestCollection_SaveReplacesByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Stories.Save(ctx, testStory("s-1", 100)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := store.Stories.Save(ctx, testStory("s-2", 200)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	updated := testStory("s-1", 100)
	updated.Title = "Renamed"
	if _, err := store.Stories.Save(ctx, updated); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	stories, err := store.Stories.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(stories) != 2 {
		t.Fatalf("expected 2 stories (upserted, not duplicated), got %d", len(stories))
	}
	if stories[0].Title != "Renamed" {
		t.Errorf("Title = %q, want 'Renamed'", stories[0].Title)
	}
}

func TestCollection_SaveInvalid(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.Profiles.Save(context.Background(), model.ChildProfile{ID: "c-1"})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if _, statErr := os.Stat(store.Profiles.Path()); !os.IsNotExist(statErr) {
		t.Error("invalid record should not create the collection file")
	}
}

func TestCollection_Delete(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Stories.Save(ctx, testStory("s-1", 100)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if err := store.Stories.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}

	_, ok, err := store.Stories.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if ok {
		t.Error("story still present after delete")
	}

	err = store.Stories.Delete(ctx, "s-1")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
}

func TestCollection_DecodeErrorKeepsCache(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if err := os.WriteFile(store.Stories.Path(), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("failed to write corrupt file: %v", err)
	}

	_, err := store.Stories.All(ctx)
	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("All() error = %v, want *StorageError", err)
	}
	if storageErr.Op != "decode" {
		t.Errorf("Op = %q, want 'decode'", storageErr.Op)
	}

	// Save must fail too and leave the corrupt file for inspection
	if _, err := store.Stories.Save(ctx, testStory("s-1", 1)); !errors.As(err, &storageErr) {
		t.Errorf("Save() error = %v, want *StorageError", err)
	}
	data, _ := os.ReadFile(store.Stories.Path())
	if string(data) != "{not json" {
		t.Errorf("corrupt file was overwritten: %q", data)
	}
}

func TestCollection_IgnoresUnknownFields(t *testing.T) {
	store := setupTestStore(t)

	content := `[{"id":"c-1","name":"Mia","age":5,"gender":"female","interests":["dinosaurs","space"],"createdAt":"2026-01-10T07:36:29Z","favoriteColor":"green"}]`
	if err := os.WriteFile(store.Profiles.Path(), []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	profiles, err := store.Profiles.All(context.Background())
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(profiles) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(profiles))
	}
	if diff := cmp.Diff([]string{"dinosaurs", "space"}, profiles[0].Interests); diff != "" {
		t.Errorf("interests mismatch (-want +got):\n%s", diff)
	}
}

func TestCollection_AllReturnsCopy(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Stories.Save(ctx, testStory("s-1", 100)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	stories, _ := store.Stories.All(ctx)
	stories[0].Title = "mutated"

	again, _ := store.Stories.All(ctx)
	if again[0].Title == "mutated" {
		t.Error("All() exposed the internal cache")
	}
}

func TestCollection_ConcurrentSaves(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errCh := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.Stories.Save(ctx, testStory(fmt.Sprintf("s-%d", i), int64(i+1))); err != nil {
				errCh <- err
			}
		}(i)
	}
	wg.Wait()
	close(errCh)

	for err := range errCh {
		t.Errorf("concurrent Save() failed: %v", err)
	}

	// Reload from disk to make sure no write was lost
	store.Stories.Invalidate()
	stories, err := store.Stories.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(stories) != 20 {
		t.Errorf("expected 20 stories, got %d", len(stories))
	}
}

func TestCollection_RefreshDetectsExternalWrite(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	if _, err := store.Stories.Save(ctx, testStory("s-1", 100)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if store.Stories.Refresh() {
		t.Error("Refresh() dropped the cache after our own write")
	}

	// Another process rewrites the file
	other, err := Open(store.Dir(), log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	if _, err := other.Stories.Save(ctx, testStory("s-2", 200)); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	// Make sure the modification time differs on coarse filesystems
	future := time.Now().Add(2 * time.Second)
	if err := os.Chtimes(store.Stories.Path(), future, future); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	if !store.Stories.Refresh() {
		t.Fatal("Refresh() did not notice the external write")
	}
	stories, err := store.Stories.All(ctx)
	if err != nil {
		t.Fatalf("All() failed: %v", err)
	}
	if len(stories) != 2 {
		t.Errorf("expected 2 stories after refresh, got %d", len(stories))
	}
}

func TestCollection_CancelledContext(t *testing.T) {
	store := setupTestStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.Stories.Save(ctx, testStory("s-1", 1)); !errors.Is(err, context.Canceled) {
		t.Errorf("Save() error = %v, want context.Canceled", err)
	}
	if _, err := os.Stat(filepath.Join(store.Dir(), "stories.json")); !os.IsNotExist(err) {
		t.Error("cancelled Save() wrote the collection file")
	}
}
