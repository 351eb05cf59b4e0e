package cli

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"linechat/internal/auth"
	logger "linechat/internal/log"
	"linechat/internal/server"
	"linechat/internal/server/ai"
	"linechat/internal/server/config"
	"linechat/internal/server/room"
	"linechat/internal/server/stats"
	"linechat/internal/server/status"
	"linechat/internal/server/store"
	"linechat/internal/tlsconf"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "linechat-server",
	Short: "TLS line chat server with human and AI rooms",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load .env: %w", err)
		}

		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}
		logger.Init(cfg.Env)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to server.yaml")
}

func run(ctx context.Context, cfg *config.Config) error {
	tlsCfg, err := tlsconf.ServerConfig(cfg.Keystore, cfg.KeystorePassword)
	if err != nil {
		return err
	}

	credLog, err := store.OpenCredentialLog(cfg.CredentialStore, cfg.UsersDB)
	if err != nil {
		return err
	}
	defer credLog.Close()

	tokens := auth.NewTokenManager(
		auth.KeyFromEnv("LINECHAT_TOKEN_HASH_KEY", 32),
		auth.KeyFromEnv("LINECHAT_TOKEN_BLOCK_KEY", 32),
		cfg.TokenTTL,
	)
	db, err := store.NewAuthDb(credLog, tokens, auth.NewHasher(auth.DefaultParams))
	if err != nil {
		return fmt.Errorf("load credentials: %w", err)
	}
	log.Info().Int("users", db.Users()).Str("store", cfg.CredentialStore).Msg("Credentials loaded")

	rooms := room.NewRegistry(ctx, room.Options{
		Policy:    cfg.RoomPolicy,
		History:   cfg.History,
		Responder: responder(cfg),
	})
	for _, name := range cfg.AI.Rooms {
		if _, err := rooms.Add(name, true); err != nil {
			return fmt.Errorf("create room %q: %w", name, err)
		}
	}

	st := stats.New()
	if cfg.StatusAddr != "" {
		h := status.NewHandler(rooms, st)
		go func() {
			if err := h.Serve(ctx, cfg.StatusAddr); err != nil {
				log.Error().Err(err).Msg("Status server failed")
			}
		}()
	}

	ln, err := tls.Listen("tcp", net.JoinHostPort("", strconv.Itoa(cfg.Port)), tlsCfg)
	if err != nil {
		return err
	}
	log.Info().Int("port", cfg.Port).Bool("multiplex", cfg.Multiplex).Msg("Listening")

	srv := server.New(db, rooms, st, cfg.ServerOptions())
	err = srv.Serve(ctx, ln)
	log.Info().Msg("Server stopped")
	return err
}

func responder(cfg *config.Config) room.Responder {
	key := os.Getenv("ANTHROPIC_API_KEY")
	if key == "" {
		log.Info().Msg("ANTHROPIC_API_KEY not set, AI rooms use canned replies")
		return ai.Canned{}
	}
	r, err := ai.NewAnthropic(key, cfg.AI.Model)
	if err != nil {
		log.Warn().Err(err).Msg("Anthropic client unavailable, AI rooms use canned replies")
		return ai.Canned{}
	}
	return r
}
