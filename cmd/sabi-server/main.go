// Command sabi-server runs the dedicated, authoritative game server.
package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/config"
	"github.com/riftline/sabi/internal/game"
	"github.com/riftline/sabi/internal/replicate"
	"github.com/riftline/sabi/internal/server"
	"github.com/riftline/sabi/internal/transport"
	"github.com/riftline/sabi/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML server config file")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sabi-server: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load[server.Config](*configPath)
		if err != nil {
			log.Fatal("failed to load config", zap.Error(err))
		}
		cfg = loaded
	}
	config.Env("SABI_PORT", func(v string) { fmt.Sscanf(v, "%d", &cfg.Port) })

	world := game.NewWorld()
	world.SetLevel(game.DemoLevel())

	registry := replicate.New()
	game.Register(registry, world)
	registry.Freeze()

	dicts := wire.NewDictionaries()
	dicts.Set("update", game.DictionarySample())
	componentCodec, err := wire.NewDictCodec(dicts, "update")
	if err != nil {
		log.Fatal("failed to build component codec", zap.Error(err))
	}
	inputCodec, err := wire.NewPlainCodec(zstd.SpeedFastest)
	if err != nil {
		log.Fatal("failed to build input codec", zap.Error(err))
	}

	bus := transport.NewServerBus(log)
	srv := server.New(cfg, world, registry, bus, componentCodec, inputCodec, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/sabi", func(w http.ResponseWriter, r *http.Request) {
		if _, err := bus.Upgrade(w, r); err != nil {
			log.Warn("failed to upgrade connection", zap.Error(err))
		}
	})
	mux.Handle("/metrics", srv.Metrics().Handler())

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Info("starting server", zap.String("addr", addr), zap.Int("tick_rate", cfg.TickRate))

	srv.Start()
	defer srv.Stop()

	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatal("http server failed", zap.Error(err))
	}
}
