package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/DoyleJ11/live-cursor/internal/config"
	"github.com/DoyleJ11/live-cursor/internal/logging"
	"github.com/DoyleJ11/live-cursor/internal/presence"
	"github.com/DoyleJ11/live-cursor/internal/transport/wsclient"
)

type joinFlags struct {
	url     string
	auth    string
	room    string
	name    string
	message string
	region  string
}

func buildJoinCmd() *cobra.Command {
	var f joinFlags
	cmd := &cobra.Command{
		Use:   "join",
		Short: "Join a channel and log peer entry and leave until interrupted",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runJoin(cmd, f)
		},
	}
	cmd.Flags().StringVar(&f.url, "url", "", "Websocket endpoint (default $"+config.EnvPresenceURL+")")
	cmd.Flags().StringVar(&f.auth, "auth", "", "Auth endpoint returning {\"token\"} (default $"+config.EnvAuthEndpoint+")")
	cmd.Flags().StringVar(&f.room, "room", "", "Channel name (default $"+config.EnvRoom+")")
	cmd.Flags().StringVar(&f.name, "name", "", "Display name")
	cmd.Flags().StringVar(&f.message, "message", "", "Chat bubble text to show")
	cmd.Flags().StringVar(&f.region, "region", "", "Region label")
	return cmd
}

// merge lets flags win over the environment.
func (f joinFlags) merge(cfg config.Config) config.Config {
	if f.url != "" {
		cfg.PresenceURL = f.url
	}
	if f.auth != "" {
		cfg.AuthEndpoint = f.auth
	}
	if f.room != "" {
		cfg.Room = f.room
	}
	return cfg
}

func runJoin(cmd *cobra.Command, f joinFlags) error {
	log, err := logging.New(logging.ProfileCLI)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg = f.merge(cfg)
	if err := config.ValidateClient(cfg); err != nil {
		return err
	}

	tr, err := wsclient.New(wsclient.Config{
		URL:          cfg.PresenceURL,
		AuthEndpoint: cfg.AuthEndpoint,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := presence.New(ctx, tr, presence.Options{
		Channel: cfg.Room,
		Name:    f.name,
		Region:  f.region,
		Logger:  log,
		OnOtherEntry: func(p presence.Peer) {
			log.Info("peer entered", zap.String("peer", p.ID()), zap.String("name", p.Name()))
		},
		OnOtherLeave: func(p presence.Peer) {
			log.Info("peer left", zap.String("peer", p.ID()), zap.String("name", p.Name()))
		},
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	if f.message != "" {
		s.Me().UpdateMessage(f.message)
	}
	s.Start()
	fmt.Fprintf(cmd.OutOrStdout(), "joined %s as %s\n", cfg.Room, s.ID())

	select {
	case <-ctx.Done():
	case <-s.Done():
	}
	s.Close()
	return nil
}
