package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/soyeahso/smsrelay/internal/store"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newRuleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rule",
		Aliases: []string{"rules"},
		Short:   "Manage keyword rules",
	}

	cmd.AddCommand(newRuleAddCmd())
	cmd.AddCommand(newRuleListCmd())
	cmd.AddCommand(newRuleRmCmd())
	cmd.AddCommand(newRuleImportCmd())
	return cmd
}

func newRuleAddCmd() *cobra.Command {
	var rule domain.Rule

	cmd := &cobra.Command{
		Use:     "add",
		Short:   "Add or update a keyword rule",
		Long:    "Add a rule forwarding messages that contain --keyword to --channel.\nAn empty keyword matches every message.",
		Example: "  smsrelay rule add --keyword code --channel ops",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rule.ChannelID == "" {
				return errors.New("--channel is required")
			}

			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			channels, err := r.rules.LoadChannels(cmd.Context())
			if err != nil {
				return err
			}
			if !hasChannel(channels, rule.ChannelID) {
				log.Warn().Str("channel", rule.ChannelID).Msg("rule names a channel that does not exist, it will never fire")
			}

			saved, err := r.rules.SaveRule(cmd.Context(), rule)
			if err != nil {
				return err
			}
			r.rulesChanged("rule.add", saved.ID)
			fmt.Fprintf(cmd.OutOrStdout(), "Saved rule %s (%s -> %s)\n", saved.ID, keywordLabel(saved), saved.ChannelID)
			return nil
		},
	}

	cmd.Flags().StringVar(&rule.ID, "id", "", "rule id (generated when empty, existing id updates in place)")
	cmd.Flags().StringVar(&rule.Keyword, "keyword", "", "keyword to look for, empty matches everything")
	cmd.Flags().StringVar(&rule.ChannelID, "channel", "", "target channel id")
	return cmd
}

func newRuleListCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List keyword rules",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			rules, err := r.rules.LoadRules(cmd.Context())
			if err != nil {
				return err
			}
			channels, err := r.rules.LoadChannels(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(rules) == 0 {
				fmt.Fprintln(out, "No rules configured.")
				return nil
			}
			for _, rule := range rules {
				target := rule.ChannelID
				if !hasChannel(channels, rule.ChannelID) {
					target += " (missing)"
				}
				fmt.Fprintf(out, "%s  %-16s -> %s\n", rule.ID, keywordLabel(rule), target)
			}
			return nil
		},
	}
}

func newRuleRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"remove"},
		Short:   "Remove a keyword rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.rules.DeleteRule(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("rule %q not found", args[0])
				}
				return err
			}
			r.rulesChanged("rule.rm", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "Removed rule %s\n", args[0])
			return nil
		},
	}
}

// ruleFile is the YAML document accepted by "rule import".
type ruleFile struct {
	Channels []domain.Channel `yaml:"channels"`
	Rules    []domain.Rule    `yaml:"rules"`
}

func newRuleImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "Import channels and rules from a YAML file",
		Long: "Import channels and rules in one transaction. Entries with an existing id\n" +
			"replace it; entries without an id get a new one.\n\n" +
			"  channels:\n" +
			"    - {id: ops, name: ops, type: webhook, target: https://hooks.example.com/x}\n" +
			"  rules:\n" +
			"    - {keyword: code, channelId: ops}",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var doc ruleFile
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parsing %s: %w", args[0], err)
			}

			r, err := openStoreOnly()
			if err != nil {
				return err
			}
			defer r.Close()

			if err := r.rules.Import(cmd.Context(), doc.Channels, doc.Rules); err != nil {
				return err
			}
			r.rulesChanged("rule.import", "")
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d channel(s) and %d rule(s)\n", len(doc.Channels), len(doc.Rules))
			return nil
		},
	}
}

func hasChannel(channels []domain.Channel, id string) bool {
	for _, ch := range channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}

func keywordLabel(r domain.Rule) string {
	if r.MatchAll() {
		return "(all messages)"
	}
	return fmt.Sprintf("%q", r.Keyword)
}
