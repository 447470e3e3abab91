// Command sabi-client runs the game client, predicting its own player
// locally and reconciling against the authoritative server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/riftline/sabi/internal/client"
	"github.com/riftline/sabi/internal/config"
	"github.com/riftline/sabi/internal/game"
	"github.com/riftline/sabi/internal/wire"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML client config file")
	serverAddr := flag.String("server", "", "server websocket address, e.g. ws://localhost:7777/sabi")
	playerName := flag.String("name", "", "player name")
	flag.Parse()

	log, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "sabi-client: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	cfg := client.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load[client.Config](*configPath)
		if err != nil {
			log.Fatal("failed to load config", zap.Error(err))
		}
		cfg = loaded
	}
	if *serverAddr != "" {
		cfg.ServerAddr = *serverAddr
	}
	if *playerName != "" {
		cfg.PlayerName = *playerName
	}
	config.Env("SABI_SERVER_ADDR", func(v string) { cfg.ServerAddr = v })

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

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// A fatal session error (spec §7: corrupt core message on the
	// component channel) tears down the Client and comes back here as a
	// plain error from Run; reconnect fresh rather than exit, since the
	// failure is specific to that session, not to the server itself.
	for ctx.Err() == nil {
		c := client.New(cfg, componentCodec, inputCodec, log)

		if err := c.Connect(ctx); err != nil {
			if ctx.Err() != nil {
				break
			}
			log.Error("failed to connect, retrying", zap.Error(err))
			continue
		}

		log.Info("connected to server", zap.String("addr", cfg.ServerAddr), zap.String("player", cfg.PlayerName))

		err := c.Run(ctx)
		c.Disconnect()
		if err != nil && ctx.Err() == nil {
			log.Warn("session ended, reconnecting fresh", zap.Error(err))
			continue
		}
	}
}
