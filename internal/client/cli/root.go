package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"linechat/internal/client"
	"linechat/internal/client/config"
	"linechat/internal/client/console"
	"linechat/internal/client/events"
	"linechat/internal/client/session"
	logger "linechat/internal/log"
	"linechat/internal/port"
	"linechat/internal/tlsconf"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath    string
	sessionSuffix string
	debug         bool
)

var rootCmd = &cobra.Command{
	Use:   "linechat-client",
	Short: "Interactive client for a linechat server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfig(configPath)
		if err != nil {
			return err
		}

		closeLog, err := initLogging(cfg.LogFile)
		if err != nil {
			return err
		}
		defer closeLog()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		return run(ctx, cfg, os.Stdin, os.Stdout)
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to client.yaml")
	rootCmd.Flags().StringVarP(&sessionSuffix, "session", "s", "", "session file suffix, for several clients in one directory")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "verbose logging")
}

// initLogging keeps log lines out of the chat output: they go to the
// configured file, or to stderr at warn level.
func initLogging(path string) (func(), error) {
	level := zerolog.WarnLevel
	if debug {
		level = zerolog.DebugLevel
	}
	if path == "" {
		logger.InitWriter("dev", os.Stderr, level)
		return func() {}, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	if !debug {
		level = zerolog.InfoLevel
	}
	logger.InitWriter("prod", f, level)
	return func() { f.Close() }, nil
}

func run(ctx context.Context, cfg *config.Config, in io.Reader, out io.Writer) error {
	tlsCfg, err := tlsconf.ClientConfig(cfg.Truststore, cfg.TruststorePassword, cfg.Host)
	if err != nil {
		return err
	}

	sess, err := session.Open(session.Path(cfg.SessionDir, sessionSuffix))
	if err != nil {
		return err
	}

	bus := events.NewBusWithBuffer(1024)
	printer := console.NewPrinter(out)
	printer.Banner(cfg.Addr())
	if sess.Shared() {
		fmt.Fprintln(out, "Session file is in use by another client; this session will not be saved.")
	}

	printed := make(chan struct{})
	sub := bus.Subscribe()
	go func() {
		defer close(printed)
		printer.Run(sub)
	}()

	p := port.New(port.TLSDialer(cfg.Addr(), tlsCfg, cfg.Multiplex), cfg.ReconnectConfig())
	c := client.New(p, console.NewInput(in), sess, bus, cfg.Addr())

	err = c.Run(ctx)
	bus.Close()
	<-printed

	if err != nil {
		log.Error().Err(err).Msg("Client stopped")
		return fmt.Errorf("connection to %s lost: %w", cfg.Addr(), err)
	}
	return nil
}
