package main

import (
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/olivier-w/mailbox/internal/catalog"
	"github.com/olivier-w/mailbox/internal/config"
	"github.com/olivier-w/mailbox/internal/mailbox"
	"github.com/olivier-w/mailbox/internal/player"
	"github.com/olivier-w/mailbox/internal/registry"
	"github.com/olivier-w/mailbox/internal/router"
	"github.com/olivier-w/mailbox/internal/sorter"
	"github.com/olivier-w/mailbox/internal/ui"
)

// session owns everything opened for one mailbox.
type session struct {
	cfg      *config.Config
	cat      *catalog.Catalog
	table    *sorter.Table
	reg      *registry.Registry
	location *router.FileLocation
	engine   *player.Engine
	ctrl     *mailbox.Controller
}

type engineFactory func() *player.Engine

func openSession(cfg *config.Config, newEngine engineFactory) (*session, error) {
	cat, err := catalog.Load(cfg.Mailbox, cfg.AudioRoot)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:   cfg,
		cat:   cat,
		table: cat.Table(sorter.WithLanguage(cfg.LanguageTag())),
		reg:   cat.Registry(),
	}

	var loc router.Location
	if fl, err := router.OpenFileLocation(cfg.FragmentPath()); err != nil {
		log.Warn().Err(err).Str("path", cfg.FragmentPath()).Msg("Fragment file unavailable, selection will not persist")
		loc = router.NewMemoryLocation("")
	} else {
		s.location = fl
		loc = fl
	}

	s.engine = newEngine()
	s.ctrl = mailbox.New(mailbox.Options{
		Engine:    s.engine,
		Registry:  s.reg,
		Router:    router.New(loc, s.reg),
		Sorter:    s.table,
		SiteTitle: cfg.SiteTitle,
		Volume:    cfg.VolumeLevel(),
		OnPlayStarted: func(p mailbox.PlayStart) {
			log.Info().Str("id", p.ID).Str("memo", p.Memo).Msg("Voicemail playback started")
		},
	})
	s.ctrl.Init()
	if cfg.Muted {
		s.ctrl.Dispatch(mailbox.MuteClicked{})
	}

	log.Info().Str("mailbox", cfg.Mailbox).Int("messages", s.reg.Len()).Msg("Mailbox opened")
	return s, nil
}

func (s *session) model() ui.Model {
	var fragments <-chan string
	if s.location != nil {
		fragments = s.location.Changes()
	}
	heading := s.cat.Title
	if heading == "" {
		heading = s.cfg.SiteTitle
	}
	return ui.New(ui.Options{
		Controller: s.ctrl,
		Registry:   s.reg,
		Table:      s.table,
		Events:     s.engine.Events(),
		Fragments:  fragments,
		Heading:    heading,
	})
}

// close stops playback, releases the audio device and fragment watcher,
// and persists the volume.
func (s *session) close() error {
	ps := s.ctrl.PlayerState()
	s.ctrl.Dispose()
	s.engine.Close()
	if s.location != nil {
		if err := s.location.Close(); err != nil {
			log.Warn().Err(err).Msg("Closing fragment watcher")
		}
	}

	// Reload so command-line overrides are not written back.
	saved, err := config.Load(s.cfg.Path())
	if err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	saved.SetVolumeLevel(ps.LastVolume)
	saved.Muted = ps.Muted
	if err := saved.Save(); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}
	return nil
}
