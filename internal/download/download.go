// Package download fetches the published IMDb dataset files into a local
// folder. A JSON map of Last-Modified headers kept beside the files skips
// downloads when the upstream file is unchanged.
package download

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"pimdb/internal/dataset"
)

// BaseURL is where IMDb publishes the dataset exports.
const BaseURL = "https://datasets.imdbws.com"

// lastModifiedFilename is the cache file written into the dataset folder.
const lastModifiedFilename = ".pimdb_last_modified.json"

// Client downloads dataset files.
type Client struct {
	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client

	// BaseURL defaults to the IMDb dataset site.
	BaseURL string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return BaseURL
}

// Fetch downloads one dataset file into folder. Unless force is set, the
// download is skipped when the upstream Last-Modified header matches the
// one cached from the previous download. Reports whether the file was
// actually downloaded.
func (c *Client) Fetch(ctx context.Context, id dataset.ID, folder string, force bool) (bool, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return false, fmt.Errorf("create dataset folder: %w", err)
	}
	sourceURL := c.baseURL() + "/" + id.Filename()
	targetPath := filepath.Join(folder, id.Filename())
	cache := loadLastModifiedMap(filepath.Join(folder, lastModifiedFilename))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return false, fmt.Errorf("download %s: %w", sourceURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("download %s: unexpected status %s", sourceURL, resp.Status)
	}

	lastModified := resp.Header.Get("Last-Modified")
	if !force && lastModified != "" && cache.entries[sourceURL] == lastModified {
		log.Printf("dataset %s is up to date, skipping download of %s", id, sourceURL)
		return false, nil
	}

	sizeText := ""
	if resp.ContentLength > 0 {
		sizeText = humanize.Bytes(uint64(resp.ContentLength)) + " "
	}
	log.Printf("downloading %sfrom %s to %s", sizeText, sourceURL, targetPath)

	// Write to a temporary name so an interrupted download never leaves a
	// truncated dataset file behind.
	tmp, err := os.CreateTemp(folder, id.Filename()+".partial-*")
	if err != nil {
		return false, err
	}
	defer os.Remove(tmp.Name())
	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		return false, fmt.Errorf("download %s: %w", sourceURL, err)
	}
	if err := tmp.Close(); err != nil {
		return false, err
	}
	if err := os.Rename(tmp.Name(), targetPath); err != nil {
		return false, err
	}

	if lastModified != "" {
		cache.entries[sourceURL] = lastModified
		if err := cache.save(); err != nil {
			log.Printf("warning: cannot save last modified map %s: %v", cache.path, err)
		}
	}
	return true, nil
}

// lastModifiedMap caches upstream Last-Modified headers per source URL.
type lastModifiedMap struct {
	path    string
	entries map[string]string
}

func loadLastModifiedMap(path string) *lastModifiedMap {
	m := &lastModifiedMap{path: path, entries: map[string]string{}}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("warning: cannot read last modified map %s, enforcing downloads: %v", path, err)
		}
		return m
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		log.Printf("warning: cannot process last modified map %s, enforcing downloads: %v", path, err)
		m.entries = map[string]string{}
	}
	return m
}

func (m *lastModifiedMap) save() error {
	data, err := json.Marshal(m.entries)
	if err != nil {
		return err
	}
	return os.WriteFile(m.path, data, 0o644)
}
