package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/siae-sistema/cardlink/internal/backend"
	"github.com/siae-sistema/cardlink/internal/config"
	"github.com/siae-sistema/cardlink/internal/models"
	"github.com/siae-sistema/cardlink/internal/storage"
	"github.com/siae-sistema/cardlink/internal/wedge"
)

// cardService is either the local store or the remote backend.
type cardService interface {
	LinkCard(ctx context.Context, studentID, uid string) error
	RegisterAccess(ctx context.Context, uid string) (models.Access, error)
}

func (g *globalFlags) load() (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return config.Config{}, err
	}
	if g.dbPath != "" {
		cfg.Store.Path = g.dbPath
	}
	if g.backendURL != "" {
		cfg.Backend.URL = g.backendURL
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func openStore(cfg config.Config) (*storage.DB, error) {
	db, err := storage.Open(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Opened local store", "path", cfg.Store.Path)
	return db, nil
}

// openService picks the backend when one is configured, the local store otherwise.
func openService(cfg config.Config) (cardService, func(), error) {
	if cfg.Backend.URL != "" {
		slog.Info("Using attendance backend", "url", cfg.Backend.URL)
		return backend.NewClient(cfg.Backend.URL, cfg.Backend.Token, cfg.Backend.Timeout), func() {}, nil
	}
	db, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() {
		if err := db.Close(); err != nil {
			slog.Error("Unable to close store", "err", err)
		}
	}, nil
}

// startReader feeds field from the evdev device, or from stdin when none is set.
func startReader(ctx context.Context, device string, field *wedge.Field) error {
	if device == "" {
		slog.Info("Reading cards from standard input")
		term := wedge.NewTerminal(os.Stdin, field)
		go func() {
			if err := term.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Terminal input stopped", "err", err)
			}
		}()
		return nil
	}

	ev, err := wedge.OpenEvdev(device, field)
	if err != nil {
		return fmt.Errorf("failed to open reader device: %w", err)
	}
	slog.Info("Reading cards from device", "device", device)
	go func() {
		defer ev.Close()
		if err := ev.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Error("Reader device stopped", "device", device, "err", err)
		}
	}()
	return nil
}
