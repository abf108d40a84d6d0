package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/carbontoken/internal/ledger"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Kind string
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Resolve queued issuances",
		Long: `Look up every queued ledger entry on the provider's status endpoint and
record the tokens of the issuances that have resolved since.

Example:
  carbontoken update --kind shipment
  carbontoken update --kind delivery --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", string(ledger.KindShipment), "record kind (shipment|delivery)")

	return cmd
}

func runUpdate(opts *UpdateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	kind, err := ledger.ParseKind(opts.Kind)
	if err != nil {
		return outputCommandError(formatter, ErrCodeInvalidFlag, err)
	}

	env, err := openEnv(opts.RootOptions, cmd.ErrOrStderr(), formatter)
	if err != nil {
		return err
	}
	defer env.Close()

	ctx, stop := signalContext(cmd.Context(), env.log)
	defer stop()

	report, runErr := env.workflow.Poll(ctx, kind)
	env.pushMetrics(kind)

	if runErr != nil {
		return outputRunError(formatter, report, runErr)
	}
	return formatter.Success(report)
}
