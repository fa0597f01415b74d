package player

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// maxRemoteBytes bounds how much of a remote message is buffered.
const maxRemoteBytes = 64 << 20

// Source is opened media. Ext selects the decoder.
type Source struct {
	io.ReadSeeker
	io.Closer
	Ext string
}

// Opener resolves a locator to readable media.
type Opener func(ctx context.Context, locator string) (*Source, error)

var remoteClient = &http.Client{Timeout: 30 * time.Second}

// IsRemote reports whether locator is an http(s) URL.
func IsRemote(locator string) bool {
	return strings.HasPrefix(locator, "http://") || strings.HasPrefix(locator, "https://")
}

// OpenLocator opens a local path, a file:// URL, or an http(s) URL. Remote
// media is buffered in memory so the decoders can seek.
func OpenLocator(ctx context.Context, locator string) (*Source, error) {
	if IsRemote(locator) {
		return openRemote(ctx, locator)
	}
	p := strings.TrimPrefix(locator, "file://")
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return &Source{ReadSeeker: f, Closer: f, Ext: strings.ToLower(filepath.Ext(p))}, nil
}

func openRemote(ctx context.Context, locator string) (*Source, error) {
	u, err := url.Parse(locator)
	if err != nil {
		return nil, fmt.Errorf("parsing locator: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, locator, nil)
	if err != nil {
		return nil, err
	}
	resp, err := remoteClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", locator, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: %s", locator, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxRemoteBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", locator, err)
	}
	if len(data) > maxRemoteBytes {
		return nil, fmt.Errorf("reading %s: larger than %d bytes", locator, maxRemoteBytes)
	}
	return &Source{
		ReadSeeker: bytes.NewReader(data),
		Closer:     io.NopCloser(nil),
		Ext:        strings.ToLower(path.Ext(u.Path)),
	}, nil
}
