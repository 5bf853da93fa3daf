package main

import (
	"log"
	"net/http"

	"github.com/agentworkforce/chatrelay/internal/config"
	"github.com/agentworkforce/chatrelay/internal/ourapi"
)

func main() {
	cfg, err := config.LoadOurAPI()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	store, err := ourapi.OpenStore(ourapi.StoreConfig{Driver: cfg.Driver, DSN: cfg.DSN})
	if err != nil {
		log.Fatalf("failed to open store: %v", err)
	}
	defer store.Close()

	server := ourapi.NewServer(store, log.Default())

	log.Printf("ourapi listening on %s (driver=%s)", cfg.Addr, cfg.Driver)
	if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
