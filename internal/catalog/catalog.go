// Package catalog loads the mailbox's messages and table layout from a
// manifest, a playlist, or a directory of audio files.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/olivier-w/mailbox/internal/media"
	"github.com/olivier-w/mailbox/internal/registry"
	"github.com/olivier-w/mailbox/internal/sorter"
	"github.com/olivier-w/mailbox/internal/util"
)

// ManifestName is the manifest looked up inside a mailbox directory.
const ManifestName = "messages.toml"

// ErrNoMessages is returned when a source holds no playable messages.
var ErrNoMessages = errors.New("no messages found")

// Message fields a column can display.
const (
	FieldDate   = "date"
	FieldMemo   = "memo"
	FieldLength = "length"
	FieldID     = "id"
)

const dateLayout = "Jan 2 2006 15:04"

// Catalog is a loaded mailbox.
type Catalog struct {
	Title    string
	Columns  []sorter.Column
	Fields   []string
	SortedBy int
	Messages []registry.Message
}

// DefaultColumns returns the date, memo and length columns used when the
// source does not define any.
func DefaultColumns() ([]sorter.Column, []string) {
	return []sorter.Column{
			{Index: 0, Name: "Date", Type: sorter.Time, InitialOrder: sorter.Descending},
			{Index: 1, Name: "Memo", Type: sorter.Text},
			{Index: 2, Name: "Length", Type: sorter.Duration},
		},
		[]string{FieldDate, FieldMemo, FieldLength}
}

// Locator derives a message's audio locator from base using the
// {base}/{id}.mp3 convention. Trailing separators in base are trimmed.
func Locator(base, id string) string {
	return strings.TrimRight(base, `/\`) + "/" + id + ".mp3"
}

// Load reads a mailbox from path. A directory is loaded from its manifest
// when it has one and scanned otherwise. base overrides the manifest's
// audio root when set.
func Load(path, base string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("opening mailbox: %w", err)
	}

	var cat *Catalog
	switch {
	case info.IsDir():
		manifest := filepath.Join(path, ManifestName)
		if _, err := os.Stat(manifest); err == nil {
			cat, err = LoadManifest(manifest, base)
			if err != nil {
				return nil, err
			}
		} else {
			cat, err = Scan(path)
			if err != nil {
				return nil, err
			}
		}
	case media.IsPlaylistExt(filepath.Ext(path)):
		cat, err = LoadPlaylist(path)
		if err != nil {
			return nil, err
		}
	default:
		cat, err = LoadManifest(path, base)
		if err != nil {
			return nil, err
		}
	}

	if len(cat.Messages) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoMessages)
	}
	log.Debug().Str("path", path).Int("messages", len(cat.Messages)).Int("columns", len(cat.Columns)).Msg("Catalog loaded")
	return cat, nil
}

// Rows builds one table row per message, with a cell per column.
func (c *Catalog) Rows() []*sorter.Row {
	rows := make([]*sorter.Row, len(c.Messages))
	for i, m := range c.Messages {
		row := &sorter.Row{ID: m.ID, Cells: make([]*sorter.Cell, len(c.Fields))}
		for j, field := range c.Fields {
			row.Cells[j] = cell(m, field)
		}
		rows[i] = row
	}
	return rows
}

// Table returns a sort engine over the catalog's rows.
func (c *Catalog) Table(opts ...sorter.Option) *sorter.Table {
	return sorter.New(c.Columns, c.Rows(), c.SortedBy, opts...)
}

// Registry returns a registry holding the messages in catalog order.
func (c *Catalog) Registry() *registry.Registry {
	r := registry.New()
	r.Build(c.Messages)
	return r
}

func cell(m registry.Message, field string) *sorter.Cell {
	switch field {
	case FieldDate:
		if m.Date.IsZero() {
			return &sorter.Cell{}
		}
		return &sorter.Cell{Text: m.Date.Format(dateLayout), DateTime: m.Date.Format(time.RFC3339)}
	case FieldMemo:
		return &sorter.Cell{Text: m.Memo}
	case FieldLength:
		if m.Duration <= 0 {
			return &sorter.Cell{}
		}
		return &sorter.Cell{Text: util.FormatDuration(m.Duration)}
	case FieldID:
		return &sorter.Cell{Text: m.ID}
	default:
		return &sorter.Cell{}
	}
}

func isField(s string) bool {
	switch s {
	case FieldDate, FieldMemo, FieldLength, FieldID:
		return true
	}
	return false
}
