package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/warp/staffing-engine/export"
	"github.com/warp/staffing-engine/factory"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/staffing"
)

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Explore what-if scenarios",
		Long: `A scenario is a named, append-only log of hypothetical changes replayed
over the current data. The data itself is never modified.`,
	}
	cmd.AddCommand(newScenarioListCommand(opts))
	cmd.AddCommand(newScenarioCreateCommand(opts))
	cmd.AddCommand(newScenarioAddChangeCommand(opts))
	cmd.AddCommand(newScenarioChangesCommand(opts))
	cmd.AddCommand(newScenarioReportCommand(opts))
	cmd.AddCommand(newScenarioExportCommand(opts))
	return cmd
}

func newScenarioListCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List scenarios, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				scenarios, err := s.Store.ListScenarios(ctx)
				if err != nil {
					return failed("list scenarios", err)
				}
				t := Table{Headers: []string{"id", "name", "created_at"}}
				for _, sc := range scenarios {
					t.Rows = append(t.Rows, []string{id(sc.ID), sc.Name, sc.CreatedAt.UTC().Format(time.RFC3339)})
				}
				return opts.output(cmd).Table(t)
			})
		},
	}
}

func newScenarioCreateCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name>",
		Short: "Create an empty scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				sc, err := s.Store.CreateScenario(ctx, args[0])
				if err != nil {
					return failed("create scenario", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Scenario created with id %d.", sc.ID), map[string]int64{"id": sc.ID})
			})
		},
	}
}

func newScenarioAddChangeCommand(opts *RootOptions) *cobra.Command {
	var key string
	kinds := make([]string, 0, len(factory.ListKinds()))
	for _, k := range factory.ListKinds() {
		kinds = append(kinds, string(k))
	}
	cmd := &cobra.Command{
		Use:   "add-change <scenario-id> <kind> <payload-json>",
		Short: "Append one change to a scenario",
		Long: fmt.Sprintf(`Append one change to a scenario's log. The payload is validated before
it is recorded; a rejected change leaves the log untouched.

Kinds: %s

Examples:
  staffing scenario add-change 1 engineer_rate '{"engineer_id": 2, "new_day_rate": "900"}'
  staffing scenario add-change 1 cell_adjust '{"client_id": 1, "month": "Mar", "amount": "-250"}' --key adj-1`,
			strings.Join(kinds, ", ")),
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioID, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !json.Valid([]byte(args[2])) {
				return WrapExitError(ExitCommandError, "payload", generic.ErrInvalidPayload)
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				rec, err := s.Engine.AppendChange(ctx, scenarioID, scenario.Kind(args[1]), json.RawMessage(args[2]), key)
				if err != nil {
					return failed("add change", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Change recorded with seq %d.", rec.Seq), changeRow(rec))
			})
		},
	}
	cmd.Flags().StringVar(&key, "key", "", "idempotency key (default: generated)")
	return cmd
}

func newScenarioChangesCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "changes <scenario-id>",
		Short: "Show a scenario's change log in application order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarioID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				records, err := s.Engine.Records(ctx, scenarioID)
				if err != nil {
					return failed("list changes", err)
				}
				t := Table{Headers: []string{"seq", "kind", "idempotency_key", "payload"}}
				for _, rec := range records {
					r := changeRow(rec)
					t.Rows = append(t.Rows, []string{r["seq"], r["kind"], r["idempotency_key"], r["payload"]})
				}
				return opts.output(cmd).Table(t)
			})
		},
	}
}

func changeRow(rec generic.ChangeRecord) map[string]string {
	return map[string]string{
		"seq":             id(rec.Seq),
		"kind":            rec.Kind,
		"idempotency_key": rec.IdempotencyKey,
		"payload":         string(rec.Payload),
	}
}

// =============================================================================
// REPORT AND EXPORT
// =============================================================================

type scenarioReportFlags struct {
	reportFlags
	Explain bool
}

func (f *scenarioReportFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.Year, "year", 0, "report year (default: current year)")
	cmd.Flags().BoolVar(&f.IncludeProvisional, "include-provisional", true, "count provisional projects and allocations")
}

func (f *scenarioReportFlags) report(ctx context.Context, cmd *cobra.Command, opts *RootOptions, s *session, arg string) (*scenario.YearReport, error) {
	scenarioID, err := parseID(arg)
	if err != nil {
		return nil, err
	}
	p, err := f.params(cmd, opts)
	if err != nil {
		return nil, err
	}
	rep, err := s.Engine.YearReport(ctx, scenarioID, p.Year, p.IncludeProvisional)
	if err != nil {
		return nil, failed("scenario report", err)
	}
	return rep, nil
}

func newScenarioReportCommand(opts *RootOptions) *cobra.Command {
	var flags scenarioReportFlags
	cmd := &cobra.Command{
		Use:   "report <scenario-id>",
		Short: "Client revenue by month with the scenario applied",
		Long: `Client revenue by month with the scenario's changes replayed. Cells that
differ from the baseline are marked with "*". --explain adds the changes
that may have moved each cell.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				rep, err := flags.report(ctx, cmd, opts, s, args[0])
				if err != nil {
					return err
				}
				out := opts.output(cmd)
				if out.Format == "json" {
					return out.json(scenarioReportData(rep))
				}
				if err := out.Table(markDirty(YearTable(rep.Rows), rep.Rows, rep.Dirty)); err != nil {
					return err
				}
				if !flags.Explain {
					return nil
				}
				if _, err := fmt.Fprintln(out.Writer); err != nil {
					return err
				}
				return out.Table(provenanceTable(rep))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().BoolVar(&flags.Explain, "explain", false, "list the changes attributed to each cell")
	return cmd
}

func newScenarioExportCommand(opts *RootOptions) *cobra.Command {
	var flags scenarioReportFlags
	cmd := &cobra.Command{
		Use:   "export <scenario-id>",
		Short: "Write the baseline and scenario year reports as an .xlsx workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				rep, err := flags.report(ctx, cmd, opts, s, args[0])
				if err != nil {
					return err
				}
				path := flags.Output
				if path == "" {
					path = fmt.Sprintf("scenario-%d-%d.xlsx", rep.Scenario.ID, rep.Year)
				}
				err = writeWorkbook(path,
					export.YearSheet{Name: "Baseline", Rows: rep.Baseline},
					export.YearSheet{Name: "Scenario", Rows: rep.Rows, Dirty: rep.Dirty},
				)
				if err != nil {
					return err
				}
				return opts.output(cmd).Message(fmt.Sprintf("Wrote %s.", path), map[string]string{"file": path})
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "workbook path (default: scenario-<id>-<year>.xlsx)")
	return cmd
}

// markDirty suffixes dirty client and TOTAL cells with "*".
func markDirty(t Table, rows []staffing.Row, dirty map[scenario.CellKey]bool) Table {
	columns := generic.Columns()
	for i, r := range rows {
		for j, col := range columns {
			var k scenario.CellKey
			switch r.Type {
			case staffing.RowClient:
				k = scenario.ClientCell(r.EntityID, col)
			case staffing.RowTotal:
				k = scenario.TotalCell(col)
			default:
				continue
			}
			if dirty[k] {
				t.Rows[i][j+1] += "*"
			}
		}
	}
	return t
}

func provenanceTable(rep *scenario.YearReport) Table {
	t := Table{Headers: []string{"cell", "seq", "kind", "description"}}
	for _, k := range rep.ProvenanceCells() {
		for _, a := range rep.Provenance[k] {
			t.Rows = append(t.Rows, []string{k.String(), id(a.Seq), string(a.Kind), a.Description})
		}
	}
	return t
}

func scenarioReportData(rep *scenario.YearReport) map[string]any {
	dirty := make([]string, 0, len(rep.Dirty))
	for _, k := range rep.DirtyCells() {
		dirty = append(dirty, k.String())
	}
	provenance := provenanceTable(rep).objects()
	skipped := rep.Skipped
	if skipped == nil {
		skipped = []int64{}
	}
	return map[string]any{
		"scenario":   map[string]any{"id": rep.Scenario.ID, "name": rep.Scenario.Name},
		"year":       rep.Year,
		"baseline":   YearTable(rep.Baseline).objects(),
		"rows":       YearTable(rep.Rows).objects(),
		"dirty":      dirty,
		"provenance": provenance,
		"skipped":    skipped,
	}
}
