package main

import (
	"context"
	"log"
	"os"

	"github.com/brechtDR/ai-guess-who/internal/autoplay"
	"github.com/brechtDR/ai-guess-who/internal/config"
	"github.com/brechtDR/ai-guess-who/internal/game"
	"github.com/brechtDR/ai-guess-who/internal/gateway"
	"github.com/brechtDR/ai-guess-who/internal/modelsim"
	"github.com/brechtDR/ai-guess-who/internal/roster"
)

const gamesToPlay = 3

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store := roster.NewStore(cfg.DataDir)
	chars, err := store.LoadDefaultCharacters()
	if err != nil {
		log.Fatalf("Failed to load characters: %v", err)
	}

	gw := gateway.New(modelsim.New(chars), gateway.WithTimeout(cfg.ModelTimeout))
	defer gw.Close()
	if _, err := gw.Initialize(ctx, nil); err != nil {
		log.Fatalf("Failed to initialize gateway: %v", err)
	}

	eng := game.New(gw)

	for i := 1; i <= gamesToPlay; i++ {
		log.Printf("--- Game %d ---", i)
		if err := autoplay.Run(ctx, eng, chars, os.Stdout); err != nil {
			log.Fatalf("Game %d failed: %v", i, err)
		}
		if err := eng.Reset(ctx); err != nil {
			log.Fatalf("Reset failed: %v", err)
		}
	}
}
