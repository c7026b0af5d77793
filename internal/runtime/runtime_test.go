package runtime

import (
	"testing"

	"github.com/loqalabs/loqa-tts/internal/config"
)

func TestBusClientConfigDerivesEmbeddedURL(t *testing.T) {
	cfg := config.BusConfig{
		Embedded: true,
		Port:     4333,
		Servers:  []string{"nats://localhost:4222"},
	}
	got := busClientConfig(cfg)
	if len(got.Servers) != 1 || got.Servers[0] != "nats://127.0.0.1:4333" {
		t.Fatalf("expected embedded port in connect URL, got %v", got.Servers)
	}
}

func TestBusClientConfigKeepsExternalServers(t *testing.T) {
	cfg := config.BusConfig{
		Embedded: false,
		Port:     4333,
		Servers:  []string{"nats://one:4222", "nats://two:4222"},
	}
	got := busClientConfig(cfg)
	if len(got.Servers) != 2 || got.Servers[0] != "nats://one:4222" {
		t.Fatalf("external servers must be untouched, got %v", got.Servers)
	}
}
