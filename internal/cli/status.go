package cli

import (
	"fmt"
	"strings"

	"github.com/soyeahso/smsrelay/internal/config"
	"github.com/soyeahso/smsrelay/internal/gateway"
	"github.com/soyeahso/smsrelay/internal/version"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show smsrelay status and configuration summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, version.Info())
			fmt.Fprintln(out)

			fmt.Fprintf(out, "Config:     %s\n", paths.Config)
			fmt.Fprintf(out, "Data:       %s\n", paths.Data)
			fmt.Fprintf(out, "Logs:       %s\n", paths.Logs)
			fmt.Fprintln(out)

			cfg, err := loadedConfig()
			if err != nil {
				fmt.Fprintf(out, "Config:     error loading: %v\n", err)
				return nil
			}

			gw := cfg.Gateway
			auth := gateway.ResolveAuth(gw.Auth)
			fmt.Fprintf(out, "Gateway:    port=%d bind=%s auth=%s tls=%v signedInbound=%v\n",
				gw.Port, gw.Bind, auth.Mode, gw.TLS.Enabled, gw.InboundSecret != "")

			f := cfg.Forwarding
			state := "enabled"
			if !f.ForwardingEnabled() {
				state = "disabled"
			}
			fmt.Fprintf(out, "Forwarding: %s prefix=%q attempts=%d backoff=%s budget=%s\n",
				state, f.Prefix(), f.MaxAttempts, f.Backoff(), f.WaitBudget())

			fmt.Fprintf(out, "SMS:        %s\n", describeSMS(cfg.SMS))

			r, err := openStoreOnly()
			if err != nil {
				fmt.Fprintf(out, "Store:      error: %v\n", err)
			} else {
				defer r.Close()
				channels, cerr := r.rules.LoadChannels(cmd.Context())
				rules, rerr := r.rules.LoadRules(cmd.Context())
				if cerr != nil || rerr != nil {
					fmt.Fprintf(out, "Store:      error reading rules: %v\n", firstErr(cerr, rerr))
				} else {
					fmt.Fprintf(out, "Store:      %s (%d channel(s), %d rule(s))\n",
						paths.StorePath(cfg.Store), len(channels), len(rules))
				}
				fmt.Fprintf(out, "Latest:     %s\n", r.outcomes.Latest())
			}

			issues := config.Validate(&cfg)
			if len(issues) > 0 {
				fmt.Fprintf(out, "\nValidation issues (%d):\n", len(issues))
				for _, issue := range issues {
					fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
				}
			}

			return nil
		},
	}

	return cmd
}

func describeSMS(cfg config.SMSConfig) string {
	var parts []string
	if cfg.Default != nil {
		parts = append(parts, "default="+cfg.Default.URL)
	}
	for _, sim := range smsTransports(cfg).SIMs() {
		parts = append(parts, "sim "+sim+"="+cfg.SIMs[sim].URL)
	}
	if len(parts) == 0 {
		return "(no transport configured, sms channels will fail)"
	}
	return strings.Join(parts, " ")
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
