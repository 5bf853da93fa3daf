// Package config loads per-binary settings from the environment.
package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

// BigChat configures the fake source service. Prefix: BIGCHAT_.
type BigChat struct {
	Addr string `default:":8267"`
	// Seed pins the generator's randomness; 0 picks a time-based seed.
	Seed int64 `default:"0"`
}

// OurAPI configures the destination sink service. Prefix: OURAPI_.
type OurAPI struct {
	Addr   string `default:":8266"`
	Driver string `default:"sqlite"`
	DSN    string `envconfig:"DSN" default:"ourapi.db"`
}

// Relay configures the integration poller. Prefix: CHATRELAY_.
type Relay struct {
	SourceURL string `split_words:"true" default:"http://127.0.0.1:8267"`
	SinkURL   string `split_words:"true" default:"http://127.0.0.1:8266"`
	// Interval is both the tick cadence and the window width; consecutive
	// windows are contiguous with no overlap and no gap.
	Interval time.Duration `default:"10s"`
	// MetricsAddr serves /metrics when non-empty.
	MetricsAddr string `split_words:"true" default:""`
	// Once runs a single tick and exits.
	Once bool `default:"false"`
}

func LoadBigChat() (BigChat, error) {
	var cfg BigChat
	err := envconfig.Process("BIGCHAT", &cfg)
	return cfg, err
}

func LoadOurAPI() (OurAPI, error) {
	var cfg OurAPI
	err := envconfig.Process("OURAPI", &cfg)
	return cfg, err
}

func LoadRelay() (Relay, error) {
	var cfg Relay
	err := envconfig.Process("CHATRELAY", &cfg)
	return cfg, err
}
