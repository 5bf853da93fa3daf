package main

import (
	"log"
	"net/http"
	"time"

	"github.com/agentworkforce/chatrelay/internal/bigchat"
	"github.com/agentworkforce/chatrelay/internal/config"
)

func main() {
	cfg, err := config.LoadBigChat()
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	generator := bigchat.NewGenerator(seed)
	server := bigchat.NewServer(generator, log.Default())

	log.Printf("bigchat listening on %s", cfg.Addr)
	if err := http.ListenAndServe(cfg.Addr, server.Handler()); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
