package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/soyeahso/smsrelay/internal/config"
	"github.com/soyeahso/smsrelay/internal/gateway"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var (
		port int
		bind string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the gateway and forward inbound messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			if port != 0 {
				cfg.Gateway.Port = port
			}
			if bind != "" {
				cfg.Gateway.Bind = bind
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}

			r, err := openRelay(cfg, log)
			if err != nil {
				return err
			}
			defer r.Close()

			srv := gateway.New(cfg.Gateway, r.router, r.outcomes, log,
				gateway.WithSenders(r.senders),
				gateway.WithHooks(r.hooks),
			)

			// Block until SIGINT/SIGTERM
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if !r.router.Enabled() {
				log.Warn().Msg("forwarding is disabled, inbound messages will be dropped")
			}
			return srv.Start(ctx)
		},
	}

	cmd.Flags().IntVar(&port, "port", 0, "gateway port (overrides config)")
	cmd.Flags().StringVar(&bind, "bind", "", "bind mode: loopback, lan or custom (overrides config)")
	return cmd
}

// checkConfig logs every validation issue and fails if there are any.
func checkConfig(cfg config.Config) error {
	issues := config.Validate(&cfg)
	if len(issues) == 0 {
		return nil
	}
	for _, issue := range issues {
		log.Error().Str("path", issue.Path).Msg(issue.Message)
	}
	return fmt.Errorf("config validation failed with %d issue(s)", len(issues))
}
