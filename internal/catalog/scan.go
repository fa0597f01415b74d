package catalog

import (
	"cmp"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/rs/zerolog/log"

	"github.com/olivier-w/mailbox/internal/media"
	"github.com/olivier-w/mailbox/internal/registry"
)

// tags holds what a message's ID3v2 tag says about it.
type tags struct {
	Memo     string
	Date     time.Time
	Duration time.Duration
}

var recordingLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02T15",
	"2006-01-02",
	"2006-01",
	"2006",
}

// readTags reads ID3v2 tags from path. Files without a tag, including
// non-MP3 files, yield an empty result.
func readTags(path string) tags {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return tags{}
	}
	defer tag.Close()

	t := tags{Memo: strings.TrimSpace(tag.Title())}

	recorded := strings.TrimSpace(tag.GetTextFrame("TDRC").Text)
	if recorded == "" {
		recorded = strings.TrimSpace(tag.Year())
	}
	for _, layout := range recordingLayouts {
		if d, err := time.Parse(layout, recorded); err == nil {
			t.Date = d
			break
		}
	}

	if ms, err := strconv.Atoi(strings.TrimSpace(tag.GetTextFrame("TLEN").Text)); err == nil && ms > 0 {
		t.Duration = time.Duration(ms) * time.Millisecond
	}
	return t
}

// Scan builds a catalog from the audio files directly inside dir. The id
// is the file name without extension; memo and date come from the ID3v2
// tag, falling back to the file name and modification time. Messages are
// ordered newest first.
func Scan(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading mailbox directory: %w", err)
	}

	cat := &Catalog{Title: filepath.Base(dir)}
	cat.Columns, cat.Fields = DefaultColumns()
	cat.SortedBy = 0

	for _, entry := range entries {
		if entry.IsDir() || !media.IsSupportedExt(filepath.Ext(entry.Name())) {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		id := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))

		t := readTags(path)
		if t.Memo == "" {
			t.Memo = id
		}
		if t.Date.IsZero() {
			if info, err := entry.Info(); err == nil {
				t.Date = info.ModTime().UTC().Truncate(time.Second)
			}
		}
		abs, err := filepath.Abs(path)
		if err != nil {
			abs = path
		}
		cat.Messages = append(cat.Messages, registry.Message{
			ID:       id,
			Date:     t.Date,
			Memo:     t.Memo,
			Locator:  abs,
			Duration: t.Duration,
		})
	}

	slices.SortStableFunc(cat.Messages, func(a, b registry.Message) int {
		return cmp.Compare(b.Date.UnixMilli(), a.Date.UnixMilli())
	})
	log.Debug().Str("dir", dir).Int("messages", len(cat.Messages)).Msg("Scanned mailbox directory")
	return cat, nil
}

// LoadPlaylist builds a catalog from an m3u or pls playlist. Entries are
// kept in playlist order; the id is the entry's file name without
// extension.
func LoadPlaylist(path string) (*Catalog, error) {
	entries, err := media.ParseLocalPlaylist(path)
	if err != nil {
		return nil, err
	}
	entries, skipped := media.FilterPlayablePlaylistEntries(entries)
	if skipped > 0 {
		log.Warn().Str("path", path).Int("skipped", skipped).Msg("Skipped unplayable playlist entries")
	}

	cat := &Catalog{
		Title:    strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		SortedBy: -1,
	}
	cat.Columns, cat.Fields = DefaultColumns()
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		loc := e.Locator()
		id := strings.TrimSuffix(filepath.Base(loc), filepath.Ext(loc))
		if id == "" || seen[id] {
			log.Warn().Str("locator", loc).Msg("Skipping playlist entry with duplicate id")
			continue
		}
		seen[id] = true

		m := registry.Message{ID: id, Memo: e.Title, Locator: loc, Duration: e.Duration}
		if e.Path != "" {
			t := readTags(e.Path)
			if t.Memo != "" && e.Title == id {
				m.Memo = t.Memo
			}
			m.Date = t.Date
			if m.Duration == 0 {
				m.Duration = t.Duration
			}
		}
		cat.Messages = append(cat.Messages, m)
	}
	return cat, nil
}
