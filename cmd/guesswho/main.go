package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/brechtDR/ai-guess-who/internal/autoplay"
	"github.com/brechtDR/ai-guess-who/internal/config"
	"github.com/brechtDR/ai-guess-who/internal/game"
	"github.com/brechtDR/ai-guess-who/internal/gateway"
	"github.com/brechtDR/ai-guess-who/internal/modelsim"
	"github.com/brechtDR/ai-guess-who/internal/roster"
	"github.com/brechtDR/ai-guess-who/internal/settings"
	"github.com/brechtDR/ai-guess-who/internal/tui"
)

var debugFlag bool

func main() {
	root := &cobra.Command{
		Use:   "guesswho",
		Short: "Play Guess Who? against an on-device model",
	}
	root.PersistentFlags().BoolVar(&debugFlag, "debug", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "play",
		Short: "Start an interactive game",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay()
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "simulate",
		Short: "Run one scripted game end to end and print the transcript",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate()
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newLogger writes structured logs to a file under the data dir so they
// never fight the TUI for the terminal.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if !cfg.Debug && !debugFlag {
		return zap.NewNop(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, err
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	zcfg.OutputPaths = []string{filepath.Join(cfg.DataDir, "guesswho.log")}
	zcfg.ErrorOutputPaths = zcfg.OutputPaths
	return zcfg.Build()
}

// loadRoster prefers a saved custom set over the built-in characters.
func loadRoster(cfg *config.Config) ([]roster.Character, error) {
	store := roster.NewStore(cfg.DataDir)
	if store.HasCustomSet() {
		chars, err := store.LoadCustomCharacters()
		if err != nil {
			return nil, err
		}
		if len(chars) >= 2 {
			return chars, nil
		}
	}
	return store.LoadDefaultCharacters()
}

func setUp(withDownload bool) (*game.Engine, *gateway.Gateway, []roster.Character, *config.Config, *zap.Logger, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	chars, err := loadRoster(cfg)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}
	if len(chars) > cfg.CandidateCount {
		chars = chars[:cfg.CandidateCount]
	}

	prefs, err := settings.Load(cfg.DataDir)
	if err != nil {
		logger.Warn("loading settings failed, using defaults", zap.Error(err))
	}

	var opts []modelsim.Option
	if withDownload {
		opts = append(opts, modelsim.WithDownload())
	}
	gw := gateway.New(modelsim.New(chars, opts...),
		gateway.WithLogger(logger),
		gateway.WithTimeout(cfg.ModelTimeout))
	eng := game.New(gw,
		game.WithLogger(logger),
		game.WithReviewMode(prefs.ReviewMode))
	return eng, gw, chars, cfg, logger, nil
}

func runPlay() error {
	eng, gw, chars, cfg, logger, err := setUp(true)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer gw.Close()

	saveReview := func(enabled bool) {
		if err := settings.Save(cfg.DataDir, settings.Settings{ReviewMode: enabled}); err != nil {
			logger.Warn("saving settings failed", zap.Error(err))
		}
	}
	return tui.Run(eng, gw, roster.GameCharacters(chars), saveReview)
}

func runSimulate() error {
	eng, gw, chars, _, logger, err := setUp(false)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer gw.Close()

	ctx := context.Background()
	if _, err := gw.Initialize(ctx, nil); err != nil {
		return err
	}
	return autoplay.Run(ctx, eng, chars, os.Stdout)
}
