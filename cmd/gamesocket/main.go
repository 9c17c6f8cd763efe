// gamesocket connects to a card game server, joins a game lobby, and prints
// lobby updates to the console. The lobby re-joins automatically after a
// reconnect. Type "r" and Enter to retry after a connection failure.
// Usage: go run ./cmd/gamesocket --config configs/gamesocket.example.yaml --game 42
//
// Optional environment variables (loaded from .env when present):
//
//	GAME_HOST - Host substituted into the example config
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/gamesocket/internal/api"
	"github.com/rickgao/gamesocket/internal/channel"
	"github.com/rickgao/gamesocket/internal/config"
	"github.com/rickgao/gamesocket/internal/connection"
	"github.com/rickgao/gamesocket/internal/identity"
	"github.com/rickgao/gamesocket/internal/recovery"
	"github.com/rickgao/gamesocket/internal/version"
)

func main() {
	configPath := flag.String("config", "", "path to config file (defaults apply when empty)")
	gameID := flag.String("game", "", "game to join")
	verbose := flag.Bool("verbose", false, "print every server event")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("gamesocket", version.String())
		return
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log)
	logger.Info("starting gamesocket", "version", version.String(), "server", cfg.Server.WSURL)

	if *gameID == "" {
		logger.Error("--game is required")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	store, err := identity.Open(cfg.Identity.Path)
	if err != nil {
		logger.Error("failed to open identity", "path", cfg.Identity.Path, "error", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(cfg.Server.RestURL,
		api.WithTimeout(cfg.Server.Timeout),
		api.WithRetries(*cfg.Server.MaxRetries, time.Second),
		api.WithLogger(logger),
	)

	if store.AuthID() == "" {
		if err := provision(ctx, apiClient, store, cfg.Identity.PlayerName); err != nil {
			logger.Error("failed to provision player", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("playing as", "player", store.PlayerName())

	notifier := recovery.NewStatusNotifier(logger, func(s recovery.Status) {
		if s.Failed {
			fmt.Printf("[CONNECTION] failed: %v (type r to retry)\n", s.Err)
		} else {
			fmt.Println("[CONNECTION] ok")
		}
	})
	policy := recovery.New(cfg.RecoveryOptions(), apiClient, store, notifier, logger)

	mgr := connection.New(
		connection.WebSocketFactory(cfg.ChannelOptions(), logger),
		store,
		connection.WithLogger(logger),
	)
	mgr.Initialize(policy.OnConnectionError, policy.OnRecovered)

	go readCommands(ctx, notifier, logger)

	lobbyCtx, leaveLobby := context.WithCancel(ctx)
	defer leaveLobby()

	_, err = mgr.AttachScoped(lobbyCtx, func(ch channel.Channel, h connection.Handle) error {
		return joinLobby(mgr, ch, h, *gameID, *verbose, logger)
	})
	if err != nil {
		logger.Error("failed to attach lobby", "error", err)
		os.Exit(1)
	}

	// Stats printer
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				stats := mgr.Stats()
				logger.Info("stats",
					"state", stats.State,
					"attached", stats.Attached,
					"listeners", stats.EventListeners,
					"any_listeners", stats.AnyListeners,
					"once_listeners", stats.OnceListeners,
					"recovery_attempts", policy.Attempts(),
				)
			}
		}
	}()

	<-ctx.Done()

	if ch := mgr.Channel(); ch != nil {
		ch.Close()
	}
	logger.Info("shutdown complete")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	return config.LoadAndValidate(path)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

func provision(ctx context.Context, client *api.Client, store *identity.Store, name string) error {
	if stored := store.PlayerName(); stored != "" {
		name = stored
	}
	player, err := client.EnsurePlayer(ctx, name, "")
	if err != nil {
		return err
	}
	return store.Set(name, player.AuthID)
}

// joinLobby registers the lobby listeners and joins the game. The join is
// repeated after every reconnect because the server forgets room
// membership when the connection drops.
func joinLobby(mgr *connection.Manager, ch channel.Channel, h connection.Handle, gameID string, verbose bool, logger *slog.Logger) error {
	joiner := &sessionJoiner{ch: ch, game: gameID, logger: logger}

	if err := mgr.OnNamespaced(h, channel.EventConnect, channel.NewListener(func(channel.Event) {
		joiner.join()
	})); err != nil {
		return err
	}

	if err := mgr.OnNamespaced(h, "players", channel.NewListener(func(ev channel.Event) {
		var players []string
		if err := ev.Arg(0, &players); err != nil {
			logger.Warn("bad players payload", "error", err)
			return
		}
		fmt.Printf("[LOBBY] %s: %s\n", gameID, strings.Join(players, ", "))
	})); err != nil {
		return err
	}

	if err := mgr.OnceNamespaced(h, "game_started", channel.NewListener(func(channel.Event) {
		fmt.Printf("[LOBBY] %s: game started\n", gameID)
	})); err != nil {
		return err
	}

	if err := mgr.OnReconnect(h, channel.NewListener(func(channel.Event) {
		logger.Info("reconnected, rejoining", "game", gameID)
	})); err != nil {
		return err
	}

	if verbose {
		if err := mgr.OnAnyNamespaced(h, channel.NewListener(func(ev channel.Event) {
			data, _ := json.Marshal(ev.Args)
			fmt.Printf("[EVENT] %s %s\n", ev.Name, data)
		})); err != nil {
			return err
		}
	}

	if ch.Connected() {
		joiner.join()
	}
	return nil
}

// readCommands retries a failed connection when the user types "r".
func readCommands(ctx context.Context, notifier *recovery.StatusNotifier, logger *slog.Logger) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		switch strings.TrimSpace(scanner.Text()) {
		case "r":
			if !notifier.Retry() {
				logger.Info("nothing to retry")
			}
		case "d":
			notifier.Dismiss()
		}
	}
}
