package cli

import (
	"errors"
	"fmt"

	"github.com/soyeahso/smsrelay/internal/channel/webhook"
	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/store"
	"github.com/spf13/cobra"
)

func newChannelCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "channel",
		Aliases: []string{"channels"},
		Short:   "Manage forwarding channels",
	}

	cmd.AddCommand(newChannelAddCmd())
	cmd.AddCommand(newChannelListCmd())
	cmd.AddCommand(newChannelRmCmd())
	return cmd
}

func newChannelAddCmd() *cobra.Command {
	var ch domain.Channel
	var kind string

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add or update a channel",
		Example: "  smsrelay channel add --name ops --type webhook --target https://hooks.example.com/x\n" +
			"  smsrelay channel add --name phone --type sms --target +15550100 --sim 1",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ch.Kind = domain.ParseChannelKind(kind)
			if ch.Target == "" {
				return errors.New("--target is required")
			}
			if ch.Kind == domain.KindWebhook {
				if err := webhook.ValidateURL(ch.Target); err != nil {
					log.Warn().Err(err).Str("target", ch.Target).Msg("webhook target will be rejected at delivery")
				}
			}

			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			saved, err := r.rules.SaveChannel(cmd.Context(), ch)
			if err != nil {
				return err
			}
			r.rulesChanged("channel.add", saved.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved channel %s (%s)\n", saved.ID, saved.Label())
			return nil
		},
	}

	cmd.Flags().StringVar(&ch.ID, "id", "", "channel id (generated when empty, existing id updates in place)")
	cmd.Flags().StringVar(&ch.Name, "name", "", "display name")
	cmd.Flags().StringVar(&kind, "type", string(domain.KindWebhook), "channel type: webhook or sms")
	cmd.Flags().StringVar(&ch.Target, "target", "", "webhook URL or phone number")
	cmd.Flags().StringVar(&ch.SIM, "sim", "", "SIM selector for sms channels")
	return cmd
}

func newChannelListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List channels",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			channels, err := r.rules.LoadChannels(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(channels) == 0 {
				fmt.Fprintln(out, "No channels configured.")
				return nil
			}
			for _, ch := range channels {
				line := fmt.Sprintf("%s  %-8s %-16s %s", ch.ID, ch.Kind, ch.Label(), ch.Target)
				if ch.SIM != "" {
					line += "  sim=" + ch.SIM
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}
}

func newChannelRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a channel (rules that use it are kept)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.rules.DeleteChannel(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("channel %q not found", args[0])
				}
				return err
			}
			r.rulesChanged("channel.rm", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Removed channel %s\n", args[0])
			return nil
		},
	}
}

// openStoreOnly opens the store for management commands that never deliver.
func openStoreOnly() (*relay, error) {
	cfg, err := loadedConfig()
	if err != nil {
		return nil, err
	}
	return openStore(cfg, log)
}
