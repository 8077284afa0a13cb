package main

import (
	"context"
	"log"

	"gorm.io/gorm"

	"everlight-os/internal/bootstrap"
	"everlight-os/internal/config"
	"everlight-os/internal/server"
	"everlight-os/internal/tracer"
	"everlight-os/pkg/database"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// 2. Connect the vault database only when the backend needs it
	var gormDB *gorm.DB
	if cfg.Vault.Backend == "postgres" {
		db, err := database.NewGormDBFromDSN(cfg.Vault.PostgresDSN)
		if err != nil {
			log.Panicf("Unable to connect to GORM DB: %v", err)
		}
		gormDB = db
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Consumer Service...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// 5. Initialize + Run Server
	srv := server.New(cfg, container)
	log.Fatal(srv.Run())
}
