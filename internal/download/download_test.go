package download

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"pimdb/internal/dataset"
)

// TestFetchSkipsUnchangedFile verifies that a second fetch is skipped when
// the upstream Last-Modified header is unchanged, and that force overrides
// the skip.
func TestFetchSkipsUnchangedFile(t *testing.T) {
	t.Parallel()

	const lastModified = "Mon, 03 Aug 2026 08:00:00 GMT"
	requests := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Header().Set("Last-Modified", lastModified)
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	folder := t.TempDir()
	client := &Client{BaseURL: server.URL}
	ctx := context.Background()

	downloaded, err := client.Fetch(ctx, dataset.TitleRatings, folder, false)
	if err != nil {
		t.Fatal(err)
	}
	if !downloaded {
		t.Fatal("first fetch must download")
	}
	targetPath := filepath.Join(folder, dataset.TitleRatings.Filename())
	data, err := os.ReadFile(targetPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("got file content %q, want %q", data, "payload")
	}

	cacheData, err := os.ReadFile(filepath.Join(folder, lastModifiedFilename))
	if err != nil {
		t.Fatal(err)
	}
	entries := map[string]string{}
	if err := json.Unmarshal(cacheData, &entries); err != nil {
		t.Fatal(err)
	}
	if got := entries[server.URL+"/"+dataset.TitleRatings.Filename()]; got != lastModified {
		t.Errorf("got cached last modified %q, want %q", got, lastModified)
	}

	downloaded, err = client.Fetch(ctx, dataset.TitleRatings, folder, false)
	if err != nil {
		t.Fatal(err)
	}
	if downloaded {
		t.Error("unchanged file must be skipped")
	}

	downloaded, err = client.Fetch(ctx, dataset.TitleRatings, folder, true)
	if err != nil {
		t.Fatal(err)
	}
	if !downloaded {
		t.Error("force must re-download")
	}
	if requests != 3 {
		t.Errorf("got %d requests, want 3", requests)
	}
}

// TestFetchFailsOnHTTPError verifies that non-200 responses fail and leave
// no dataset file behind.
func TestFetchFailsOnHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer server.Close()

	folder := t.TempDir()
	client := &Client{BaseURL: server.URL}
	if _, err := client.Fetch(context.Background(), dataset.NameBasics, folder, false); err == nil {
		t.Fatal("missing upstream file must fail")
	}
	if _, err := os.Stat(filepath.Join(folder, dataset.NameBasics.Filename())); !os.IsNotExist(err) {
		t.Errorf("failed fetch must not create the dataset file, stat err = %v", err)
	}
}

// TestFetchIgnoresCorruptCache verifies that an unreadable cache file only
// forces a download instead of failing.
func TestFetchIgnoresCorruptCache(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("payload"))
	}))
	defer server.Close()

	folder := t.TempDir()
	cachePath := filepath.Join(folder, lastModifiedFilename)
	if err := os.WriteFile(cachePath, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	client := &Client{BaseURL: server.URL}
	downloaded, err := client.Fetch(context.Background(), dataset.TitleRatings, folder, false)
	if err != nil {
		t.Fatal(err)
	}
	if !downloaded {
		t.Error("corrupt cache must force a download")
	}
}
