package main

import (
	"bufio"
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charleschow/arcade-client/internal/adapters/inbound/hub"
	"github.com/charleschow/arcade-client/internal/adapters/outbound/api_http"
	"github.com/charleschow/arcade-client/internal/config"
	"github.com/charleschow/arcade-client/internal/core/session"
	"github.com/charleschow/arcade-client/internal/process"
	"github.com/charleschow/arcade-client/internal/telemetry"
)

func main() {
	pseudo := flag.String("pseudo", "", "register a new player with this name if none is stored")
	flag.Parse()

	cfg := config.Load()
	telemetry.Init(telemetry.ParseLogLevel(cfg.LogLevel))
	telemetry.Infof("Starting arcade client  api=%s  hubs=%s", cfg.APIBaseURL, cfg.HubBaseURL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ── Session store ──────────────────────────────────────────
	kv, err := session.OpenSQLiteKV(cfg.SessionDBPath)
	if err != nil {
		telemetry.Errorf("Session store: %v", err)
		os.Exit(1)
	}
	defer kv.Close()
	ptr := session.NewPointer(kv)
	snap, err := ptr.Load()
	if err != nil {
		telemetry.Errorf("Session store: %v", err)
		os.Exit(1)
	}

	// ── REST client ────────────────────────────────────────────
	api := api_http.NewClient(cfg.APIBaseURL, api_http.Options{
		RatePerSec: cfg.APIRatePerSec,
		Burst:      cfg.APIBurst,
		Timeout:    cfg.APITimeout,
	})

	// ── Player ─────────────────────────────────────────────────
	player := snap.Player
	if player != nil {
		if _, err := api.GetPlayer(ctx, player.ID); api_http.IsNotFound(err) {
			telemetry.Warnf("Stored player %s no longer exists", player.Pseudo)
			if err := ptr.SetPlayer(nil); err != nil {
				telemetry.Errorf("Session store: %v", err)
				os.Exit(1)
			}
			player = nil
		} else if err != nil {
			telemetry.Warnf("Player check failed (continuing): %v", err)
		}
	}
	if player == nil {
		name := strings.TrimSpace(*pseudo)
		if name == "" {
			telemetry.Errorf("No player stored: run with -pseudo <name> to register")
			os.Exit(1)
		}
		p, err := api.CreatePlayer(ctx, name)
		if err != nil {
			telemetry.Errorf("Register player: %v", err)
			os.Exit(1)
		}
		if err := ptr.SetPlayer(&p); err != nil {
			telemetry.Errorf("Session store: %v", err)
			os.Exit(1)
		}
		player = &p
	}
	telemetry.Infof("Playing as %s (%s)", player.Pseudo, player.ID)

	// ── Hub protocol ───────────────────────────────────────────
	aliases, err := hub.LoadAliases(cfg.ProtocolAliasesPath)
	if err != nil {
		telemetry.Errorf("Protocol aliases: %v", err)
		os.Exit(1)
	}

	var journal *hub.Journal
	if cfg.JournalDBPath != "" {
		journal, err = hub.OpenJournal(cfg.JournalDBPath, cfg.JournalMaxBytes)
		if err != nil {
			telemetry.Warnf("Frame journal disabled: %v", err)
		} else {
			defer journal.Close()
		}
	}

	hubs := hub.NewManager(cfg.HubBaseURL, hub.Options{
		MinBackoff: cfg.ReconnectMinBackoff,
		MaxBackoff: cfg.ReconnectMaxBackoff,
		Journal:    journal,
	})

	// ── App ────────────────────────────────────────────────────
	app := process.NewApp(process.Deps{
		API:            api,
		Hubs:           hubs,
		Pointer:        ptr,
		Aliases:        aliases,
		APITimeout:     cfg.APITimeout,
		CommandTimeout: cfg.CommandTimeout,
	})

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(os.Stdin)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	// ── Shutdown ───────────────────────────────────────────────
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		telemetry.Infof("Shutting down...")
		cancel()
	}()

	telemetry.Plainf("type help for commands")
	if err := app.Run(ctx, lines); err != nil {
		telemetry.Errorf("App: %v", err)
	}

	telemetry.Infof("Shutdown complete  %s", telemetry.Summary())
}
