package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/olivier-w/mailbox/internal/config"
	"github.com/olivier-w/mailbox/internal/media"
	"github.com/olivier-w/mailbox/internal/player"
)

func main() {
	configPath := flag.String("config", "", "Config file (default: user config dir)")
	logFile := flag.String("log", "", "Write logs to this file")
	debug := flag.Bool("debug", false, "Enable debug logging")
	audioRoot := flag.String("audio-root", "", "Base location of message audio files")
	title := flag.String("title", "", "Site title shown in the window title")
	fragment := flag.String("fragment", "", "File holding the selected message id")
	lang := flag.String("lang", "", "Collation language for text columns (BCP 47)")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: mailbox [flags] [directory | manifest.toml | playlist]\n\n")
		fmt.Fprintf(flag.CommandLine.Output(), "Directories are scanned for %s files.\n\n", media.SupportedExtsList())
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if flag.NArg() > 0 {
		cfg.Mailbox = flag.Arg(0)
	}
	if *audioRoot != "" {
		cfg.AudioRoot = *audioRoot
	}
	if *title != "" {
		cfg.SiteTitle = *title
	}
	if *fragment != "" {
		cfg.FragmentFile = *fragment
	}
	if *lang != "" {
		cfg.Language = *lang
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	cfg.Debug = cfg.Debug || *debug

	closeLog, err := setupLogging(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	var sess *session
	model := newStartupModel(cfg, func() *player.Engine { return player.NewEngine() }, func(s *session) { sess = s })
	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())

	_, runErr := program.Run()
	if sess != nil {
		if err := sess.close(); err != nil {
			log.Error().Err(err).Msg("Closing mailbox")
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", runErr)
		os.Exit(1)
	}
}

// setupLogging points the global logger at the configured log file. The
// terminal belongs to the UI, so logs are discarded when no file is set.
func setupLogging(cfg *config.Config) (func(), error) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if cfg.LogFile == "" {
		log.Logger = zerolog.New(io.Discard)
		return func() {}, nil
	}
	f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, NoColor: true, TimeFormat: time.RFC3339})
	return func() { f.Close() }, nil
}
