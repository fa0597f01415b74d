package catalog

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog/log"

	"github.com/olivier-w/mailbox/internal/player"
	"github.com/olivier-w/mailbox/internal/registry"
	"github.com/olivier-w/mailbox/internal/sorter"
	"github.com/olivier-w/mailbox/internal/util"
)

type manifest struct {
	Title     string           `toml:"title"`
	AudioRoot string           `toml:"audio_root"`
	SortedBy  string           `toml:"sorted_by"`
	Columns   []manifestColumn `toml:"column"`
	Messages  []manifestEntry  `toml:"message"`
}

type manifestColumn struct {
	Name  string `toml:"name"`
	Field string `toml:"field"`
	Type  string `toml:"type"`
	Order string `toml:"order"`
}

type manifestEntry struct {
	ID       string    `toml:"id"`
	Date     time.Time `toml:"date"`
	Memo     string    `toml:"memo"`
	Length   string    `toml:"length"`
	Locator  string    `toml:"locator"`
	Selected bool      `toml:"selected"`
}

// LoadManifest reads a TOML manifest. Messages without a locator get one
// from the audio root; a relative local root is resolved against the
// manifest's directory.
func LoadManifest(path, base string) (*Catalog, error) {
	var m manifest
	md, err := toml.DecodeFile(path, &m)
	if err != nil {
		return nil, fmt.Errorf("parsing manifest %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		log.Warn().Str("path", path).Stringer("key", undecoded[0]).Int("count", len(undecoded)).Msg("Ignoring unknown manifest keys")
	}

	if base == "" {
		base = m.AudioRoot
	}
	if base == "" {
		base = "."
	}
	if !player.IsRemote(base) && !filepath.IsAbs(base) {
		base = filepath.Join(filepath.Dir(path), base)
	}

	cat := &Catalog{Title: m.Title, SortedBy: -1}
	if err := cat.setColumns(m.Columns, m.SortedBy); err != nil {
		return nil, fmt.Errorf("manifest %s: %w", path, err)
	}

	for i, e := range m.Messages {
		id := strings.TrimSpace(e.ID)
		if id == "" {
			log.Warn().Str("path", path).Int("index", i).Msg("Skipping manifest message without id")
			continue
		}
		locator := e.Locator
		if locator == "" {
			locator = Locator(base, id)
		}
		cat.Messages = append(cat.Messages, registry.Message{
			ID:       id,
			Date:     e.Date,
			Memo:     e.Memo,
			Locator:  locator,
			Duration: parseLength(e.Length),
			Selected: e.Selected,
		})
	}
	return cat, nil
}

func (c *Catalog) setColumns(cols []manifestColumn, sortedBy string) error {
	if len(cols) == 0 {
		c.Columns, c.Fields = DefaultColumns()
	} else {
		for i, mc := range cols {
			field := strings.ToLower(strings.TrimSpace(mc.Field))
			if field == "" {
				field = strings.ToLower(strings.TrimSpace(mc.Name))
			}
			if !isField(field) {
				return fmt.Errorf("column %d: unknown field %q", i, field)
			}
			name := mc.Name
			if name == "" {
				name = field
			}
			c.Columns = append(c.Columns, sorter.Column{
				Index:        i,
				Name:         name,
				Type:         sorter.ParseColumnType(mc.Type),
				InitialOrder: sorter.ParseOrder(mc.Order),
			})
			c.Fields = append(c.Fields, field)
		}
	}

	c.SortedBy = -1
	if sortedBy == "" {
		return nil
	}
	for i, col := range c.Columns {
		if strings.EqualFold(col.Name, sortedBy) || c.Fields[i] == strings.ToLower(sortedBy) {
			c.SortedBy = i
			return nil
		}
	}
	return fmt.Errorf("sorted_by names unknown column %q", sortedBy)
}

// parseLength reads "m:ss"; anything else is unknown.
func parseLength(s string) time.Duration {
	d, _ := util.ParseDuration(s)
	return d
}
