// Copyright (c) 2026 Alexander G.
// Author: Alexander G. (Samsonix)
// License: MIT
// Project: EyesOn SIM Management System - Pelephone API Simulator

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/alexgavs/eyeson-go/internal/config"
	"github.com/alexgavs/eyeson-go/internal/database"
	"github.com/alexgavs/eyeson-go/internal/simulator"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Could not load config: %v", err)
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("Failed to open database:", err)
	}
	defer database.Close(db)

	if err := database.SeedAPIUser(db, cfg.SimulatorUsername, cfg.SimulatorPassword); err != nil {
		log.Fatal("Failed to seed API user:", err)
	}

	srv, err := simulator.New(db, simulator.OptionsFromConfig(cfg))
	if err != nil {
		log.Fatal("Failed to start simulator:", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	srv.Start(ctx)

	go func() {
		<-ctx.Done()
		log.Println("[Simulator] Shutting down...")
		if err := srv.Shutdown(); err != nil {
			log.Printf("[Simulator] Shutdown error: %v", err)
		}
	}()

	log.Printf("========================================")
	log.Printf(" Pelephone API Simulator")
	log.Printf("========================================")
	log.Printf(" API Endpoint: http://localhost:%s/ipa/apis/json", cfg.Port)
	log.Printf(" Admin API:    http://localhost:%s/web/api", cfg.Port)
	log.Printf(" Apply mode:   %s", cfg.ApplyMode)
	if cfg.SimulatorUsername != "" {
		log.Printf(" API user:     %s / %s", cfg.SimulatorUsername, config.MaskPassword(cfg.SimulatorPassword))
	} else {
		log.Printf(" API user:     any non-empty credentials")
	}
	log.Printf("========================================")

	if err := srv.Listen(":" + cfg.Port); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
