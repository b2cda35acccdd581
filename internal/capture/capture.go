package capture

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Source delivers one still frame per call. The scan loop asks for a frame
// at the start of every attempt; the source is expected to return whatever
// the camera currently sees.
type Source interface {
	Frame(ctx context.Context) ([]byte, error)
}

// HTTPSource fetches a JPEG snapshot from a camera snapshot URL (IP camera
// or phone companion app).
type HTTPSource struct {
	URL  string
	HTTP *http.Client
}

// NewHTTPSource creates a snapshot fetcher with a short timeout; a slow
// camera should fail the attempt, not stall the loop.
func NewHTTPSource(url string) *HTTPSource {
	return &HTTPSource{
		URL:  url,
		HTTP: &http.Client{Timeout: 5 * time.Second},
	}
}

// Frame fetches the current snapshot.
func (s *HTTPSource) Frame(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("snapshot request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("snapshot error %s", resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty snapshot")
	}
	return data, nil
}

// DirSource returns the newest JPEG in a watch directory. Used for dev rigs
// where frames are dropped as files.
type DirSource struct {
	Dir string
}

// NewDirSource creates a directory-backed source.
func NewDirSource(dir string) *DirSource { return &DirSource{Dir: dir} }

// Frame reads the most recently modified .jpg/.jpeg file in the directory.
func (s *DirSource) Frame(ctx context.Context) ([]byte, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, fmt.Errorf("read frame dir: %w", err)
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		if !strings.HasSuffix(name, ".jpg") && !strings.HasSuffix(name, ".jpeg") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return nil, fmt.Errorf("no frames in %s", s.Dir)
	}
	return os.ReadFile(filepath.Join(s.Dir, newest))
}
