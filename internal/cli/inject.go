package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/soyeahso/smsrelay/internal/domain"
	"github.com/spf13/cobra"
)

func newInjectCmd() *cobra.Command {
	var (
		from  string
		quiet bool
	)

	cmd := &cobra.Command{
		Use:   "inject <fragment>...",
		Short: "Run a message through the rules locally, as if it had just arrived",
		Long: "Each argument is one fragment of a multi-part message. Fragments are\n" +
			"concatenated in order with nothing in between, as a carrier delivers them.\n" +
			"The command waits for deliveries the same way the gateway does.",
		Example: `  smsrelay inject --from +15550100 "Your login code is 4321"
  smsrelay inject --from +15550100 "Your login " "code is 4321"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" {
				return errors.New("--from is required")
			}
			cfg, err := loadedConfig()
			if err != nil {
				return err
			}
			if err := checkConfig(cfg); err != nil {
				return err
			}

			r, err := openRelay(cfg, log)
			if err != nil {
				return err
			}
			defer r.Close()

			out := cmd.OutOrStdout()
			if !quiet {
				unsubscribe := r.outcomes.Subscribe(func(entry string) {
					fmt.Fprintln(out, entry)
				})
				defer unsubscribe()
			}
			if !r.router.Enabled() {
				return errors.New("forwarding is disabled (forwarding.enabled: false)")
			}

			fragments := make([]domain.Fragment, len(args))
			for i, body := range args {
				fragments[i] = domain.Fragment{Sender: from, Body: body}
			}
			res := r.router.HandleInbound(cmd.Context(), fragments, time.Now())

			// Flush queued outcome lines before the summary.
			r.queue.Close()

			succeeded := 0
			for _, o := range res.Outcomes {
				if o.Succeeded {
					succeeded++
				}
			}
			fmt.Fprintf(out, "matched=%d delivered=%d failed=%d pending=%d elapsed=%s\n",
				res.Matched, succeeded, len(res.Outcomes)-succeeded, res.Pending(),
				res.Elapsed.Round(time.Millisecond))
			if res.TimedOut {
				log.Warn().Int("pending", res.Pending()).Msg("stopped waiting, unfinished deliveries keep running until exit")
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&from, "from", "f", "", "originating phone number")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "only print the summary")
	return cmd
}
