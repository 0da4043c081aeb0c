package main

import (
	"fmt"
	"os"

	"github.com/brechtDR/ai-guess-who/internal/config"
	"github.com/brechtDR/ai-guess-who/internal/game"
	"github.com/brechtDR/ai-guess-who/internal/gateway"
	"github.com/brechtDR/ai-guess-who/internal/modelsim"
	"github.com/brechtDR/ai-guess-who/internal/roster"
	"github.com/brechtDR/ai-guess-who/internal/settings"
	"github.com/brechtDR/ai-guess-who/internal/tui"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	store := roster.NewStore(cfg.DataDir)
	chars, err := store.LoadDefaultCharacters()
	if err != nil {
		fmt.Printf("Error loading characters: %v\n", err)
		os.Exit(1)
	}

	prefs, _ := settings.Load(cfg.DataDir)

	gw := gateway.New(modelsim.New(chars, modelsim.WithDownload()),
		gateway.WithTimeout(cfg.ModelTimeout))
	defer gw.Close()

	eng := game.New(gw, game.WithReviewMode(prefs.ReviewMode))

	saveReview := func(enabled bool) {
		if err := settings.Save(cfg.DataDir, settings.Settings{ReviewMode: enabled}); err != nil {
			fmt.Printf("Warning: could not save settings: %v\n", err)
		}
	}

	if err := tui.Run(eng, gw, roster.GameCharacters(chars), saveReview); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
