package media

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// PlaylistEntry is one message listed in a playlist. Exactly one of Path
// and URL is set. Title and Duration come from #EXTINF or TitleN/LengthN
// when the playlist provides them.
type PlaylistEntry struct {
	Path     string
	URL      string
	Title    string
	Duration time.Duration
}

// Locator returns the URL or local path of the entry.
func (e PlaylistEntry) Locator() string {
	if e.URL != "" {
		return e.URL
	}
	return e.Path
}

// ParseLocalPlaylist parses a local .m3u/.m3u8/.pls file. Relative entries
// are resolved against the playlist file directory.
func ParseLocalPlaylist(path string) ([]PlaylistEntry, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsPlaylistExt(ext) {
		return nil, fmt.Errorf("unsupported playlist format %s", ext)
	}

	absPlaylistPath, err := filepath.Abs(path)
	if err != nil {
		absPlaylistPath = path
	}

	data, err := os.ReadFile(absPlaylistPath)
	if err != nil {
		return nil, fmt.Errorf("reading playlist: %w", err)
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("playlist is not valid UTF-8")
	}

	baseDir := filepath.Dir(absPlaylistPath)
	text := strings.TrimPrefix(string(data), "\uFEFF")
	scanner := bufio.NewScanner(strings.NewReader(text))

	switch ext {
	case ".pls":
		return parsePLS(scanner, baseDir), nil
	default:
		return parseM3U(scanner, baseDir), nil
	}
}

// FilterPlayablePlaylistEntries keeps URLs and existing, supported local
// files. Entries without a title are named after their file. It returns
// the number of entries dropped.
func FilterPlayablePlaylistEntries(entries []PlaylistEntry) ([]PlaylistEntry, int) {
	out := make([]PlaylistEntry, 0, len(entries))
	skipped := 0
	for _, e := range entries {
		if e.URL != "" {
			if e.Title == "" {
				e.Title = e.URL
			}
			out = append(out, e)
			continue
		}
		info, err := os.Stat(e.Path)
		if err != nil || info.IsDir() || !IsSupportedExt(filepath.Ext(e.Path)) {
			skipped++
			continue
		}
		if abs, err := filepath.Abs(e.Path); err == nil {
			e.Path = abs
		}
		if e.Title == "" {
			e.Title = strings.TrimSuffix(filepath.Base(e.Path), filepath.Ext(e.Path))
		}
		out = append(out, e)
	}
	return out, skipped
}

func parseM3U(scanner *bufio.Scanner, baseDir string) []PlaylistEntry {
	entries := make([]PlaylistEntry, 0)
	var pending PlaylistEntry
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "#EXTINF:"); ok {
			pending = parseEXTINF(rest)
			continue
		}
		if strings.HasPrefix(line, "#") {
			continue
		}
		e := newPlaylistEntry(line, baseDir)
		if e.Title == "" {
			e.Title = pending.Title
		}
		e.Duration = pending.Duration
		pending = PlaylistEntry{}
		entries = append(entries, e)
	}
	return entries
}

// parseEXTINF reads "seconds,title".
func parseEXTINF(s string) PlaylistEntry {
	secs, title, _ := strings.Cut(s, ",")
	var e PlaylistEntry
	e.Title = strings.TrimSpace(title)
	// attributes such as tvg-id may follow the length
	if f := strings.Fields(secs); len(f) > 0 {
		if n, err := strconv.Atoi(f[0]); err == nil && n > 0 {
			e.Duration = time.Duration(n) * time.Second
		}
	}
	return e
}

func parsePLS(scanner *bufio.Scanner, baseDir string) []PlaylistEntry {
	type plsItem struct {
		file   string
		title  string
		length time.Duration
	}
	items := make(map[int]*plsItem)
	var order []int
	item := func(n int) *plsItem {
		it, ok := items[n]
		if !ok {
			it = &plsItem{}
			items[n] = it
			order = append(order, n)
		}
		return it
	}

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		eq := strings.Index(line, "=")
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		val := strings.TrimSpace(line[eq+1:])
		if val == "" {
			continue
		}

		switch {
		case plsIndex(key, "File") > 0:
			item(plsIndex(key, "File")).file = val
		case plsIndex(key, "Title") > 0:
			item(plsIndex(key, "Title")).title = val
		case plsIndex(key, "Length") > 0:
			if n, err := strconv.Atoi(val); err == nil && n > 0 {
				item(plsIndex(key, "Length")).length = time.Duration(n) * time.Second
			}
		}
	}

	entries := make([]PlaylistEntry, 0, len(order))
	for _, n := range order {
		it := items[n]
		if it.file == "" {
			continue
		}
		e := newPlaylistEntry(it.file, baseDir)
		if it.title != "" {
			e.Title = it.title
		}
		e.Duration = it.length
		entries = append(entries, e)
	}
	return entries
}

// plsIndex returns N for keys of the form prefixN, or 0. Keys are matched
// case-insensitively.
func plsIndex(key, prefix string) int {
	if len(key) <= len(prefix) || !strings.EqualFold(key[:len(prefix)], prefix) {
		return 0
	}
	n, err := strconv.Atoi(key[len(prefix):])
	if err != nil || n <= 0 {
		return 0
	}
	return n
}

func newPlaylistEntry(raw, baseDir string) PlaylistEntry {
	raw = strings.Trim(raw, `"`)
	if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
		return PlaylistEntry{URL: raw}
	}
	return PlaylistEntry{Path: resolvePlaylistEntryPath(raw, baseDir)}
}

func resolvePlaylistEntryPath(raw, baseDir string) string {
	p := filepath.Clean(raw)
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Clean(filepath.Join(baseDir, p))
}
