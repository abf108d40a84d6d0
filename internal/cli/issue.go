package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/roach88/carbontoken/internal/ledger"
	"github.com/roach88/carbontoken/internal/source"
	"github.com/roach88/carbontoken/internal/workflow"
)

// IssueOptions holds flags for the issue command.
type IssueOptions struct {
	*RootOptions
	Kind       string
	FromDate   string
	ThruDate   string
	FacilityID string
	IssuedTo   string
}

// NewIssueCommand creates the issue command.
func NewIssueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IssueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "issue",
		Short: "Tokenize the records of a time window",
		Long: `Read the shipment route segments (or Quantum View deliveries) created in
[from_date, thru_date), skip tracking numbers that already hold a token, submit
the rest as one batch and record every result in the token ledger.

Example:
  carbontoken issue --kind shipment --facility_id WH01 \
    --from_date "2024-01-01 00:00:00" --thru_date "2024-02-01 00:00:00" --issued_to 0xabc
  carbontoken issue --kind delivery \
    --from_date "2024-01-01 00:00:00" --thru_date "2024-01-02 00:00:00" --issued_to 0xabc`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIssue(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Kind, "kind", string(ledger.KindShipment), "record kind (shipment|delivery)")
	cmd.Flags().StringVar(&opts.FromDate, "from_date", "", `window start, inclusive ("YYYY-MM-DD HH:MM:SS", required)`)
	cmd.Flags().StringVar(&opts.ThruDate, "thru_date", "", `window end, exclusive ("YYYY-MM-DD HH:MM:SS", required)`)
	cmd.Flags().StringVar(&opts.FacilityID, "facility_id", "", "origin facility (required for shipments)")
	cmd.Flags().StringVar(&opts.IssuedTo, "issued_to", "", "address the tokens are issued to (required)")
	_ = cmd.MarkFlagRequired("from_date")
	_ = cmd.MarkFlagRequired("thru_date")
	_ = cmd.MarkFlagRequired("issued_to")

	return cmd
}

func runIssue(opts *IssueOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	req, err := opts.request()
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

	report, runErr := env.workflow.Issue(ctx, req)
	env.pushMetrics(req.Kind)

	if runErr != nil {
		return outputRunError(formatter, report, runErr)
	}
	return formatter.Success(report)
}

// request validates the flags and builds the workflow request.
func (o *IssueOptions) request() (workflow.IssueRequest, error) {
	kind, err := ledger.ParseKind(o.Kind)
	if err != nil {
		return workflow.IssueRequest{}, err
	}
	window, err := source.ParseWindow(o.FromDate, o.ThruDate)
	if err != nil {
		return workflow.IssueRequest{}, err
	}
	if kind == ledger.KindShipment && o.FacilityID == "" {
		return workflow.IssueRequest{}, errors.New("--facility_id is required for shipments")
	}
	if o.IssuedTo == "" {
		return workflow.IssueRequest{}, errors.New("--issued_to must not be empty")
	}
	return workflow.IssueRequest{
		Kind:       kind,
		Window:     window,
		FacilityID: o.FacilityID,
		IssuedTo:   o.IssuedTo,
	}, nil
}
