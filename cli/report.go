package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/warp/staffing-engine/export"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/staffing"
)

// reportFlags are shared by every report. Unset flags fall back to the
// configured presentation defaults.
type reportFlags struct {
	AsOf               string
	Within             int
	Year               int
	IncludeProvisional bool
	Output             string
}

type reportParams struct {
	AsOf               generic.Date
	Within             int
	Year               int
	IncludeProvisional bool
}

func (f *reportFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.AsOf, "as-of", "", "as-of date YYYY-MM-DD (default: today)")
	cmd.Flags().IntVar(&f.Within, "within", 0, "days ahead for projects-ending (default: config)")
	cmd.Flags().IntVar(&f.Year, "year", 0, "report year (default: current year)")
	cmd.Flags().BoolVar(&f.IncludeProvisional, "include-provisional", true, "count provisional projects and allocations")
}

func (f *reportFlags) params(cmd *cobra.Command, opts *RootOptions) (reportParams, error) {
	today := opts.Today()
	p := reportParams{
		AsOf:               today,
		Within:             opts.cfg.Reports.EndingWithinDays,
		Year:               today.Year(),
		IncludeProvisional: opts.cfg.Reports.IncludeProvisional,
	}
	if f.AsOf != "" {
		d, err := generic.ParseDate(f.AsOf)
		if err != nil {
			return p, WrapExitError(ExitCommandError, "--as-of", err)
		}
		p.AsOf = d
	}
	if cmd.Flags().Changed("within") {
		if f.Within < 0 {
			return p, NewExitError(ExitCommandError, "--within must not be negative")
		}
		p.Within = f.Within
	}
	if cmd.Flags().Changed("year") {
		if f.Year < 1 || f.Year > 9999 {
			return p, NewExitError(ExitCommandError, fmt.Sprintf("invalid --year %d", f.Year))
		}
		p.Year = f.Year
	}
	if cmd.Flags().Changed("include-provisional") {
		p.IncludeProvisional = f.IncludeProvisional
	}
	return p, nil
}

// reportFunc renders one report over the base data.
type reportFunc func(ds *staffing.Dataset, p reportParams) Table

var reports = map[string]reportFunc{
	"unallocated": func(ds *staffing.Dataset, p reportParams) Table {
		return engineerTable(staffing.Unallocated(ds, p.AsOf, p.IncludeProvisional))
	},
	"allocations":             allocationsTable,
	"projects-ending":         func(ds *staffing.Dataset, p reportParams) Table { return projectTable(staffing.ProjectsEndingSoon(ds, p.AsOf, p.Within, p.IncludeProvisional)) },
	"projects-ending-details": endingDetailsTable,
	"projects-no-allocations": func(ds *staffing.Dataset, p reportParams) Table { return projectTable(staffing.ProjectsWithoutAllocations(ds, p.IncludeProvisional)) },
	"project-revenue":         revenueTable(staffing.RevenueByProject),
	"client-revenue":          revenueTable(staffing.RevenueByClient),
	"engineer-revenue":        revenueTable(staffing.RevenueByEngineer),
	"rollup":                  rollupTable,
	"client-revenue-year": func(ds *staffing.Dataset, p reportParams) Table {
		return YearTable(yearRows(ds, p))
	},
}

func reportNames() []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewReportCommand creates the report command.
func NewReportCommand(opts *RootOptions) *cobra.Command {
	var flags reportFlags
	cmd := &cobra.Command{
		Use:   "report <name>",
		Short: "Generate a report",
		Long: fmt.Sprintf(`Generate a report over the current data.

Reports: %s

Examples:
  staffing report unallocated --as-of 2026-03-15
  staffing report projects-ending --within 60
  staffing report client-revenue-year --year 2026 --output revenue.xlsx`, strings.Join(reportNames(), ", ")),
		Args:      cobra.ExactArgs(1),
		ValidArgs: reportNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			render, ok := reports[args[0]]
			if !ok {
				return NewExitError(ExitCommandError, fmt.Sprintf("unknown report %q: must be one of %s", args[0], strings.Join(reportNames(), ", ")))
			}
			if flags.Output != "" && args[0] != "client-revenue-year" {
				return NewExitError(ExitCommandError, "--output is only supported by client-revenue-year")
			}
			p, err := flags.params(cmd, opts)
			if err != nil {
				return err
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				ds, err := s.Store.LoadDataset(ctx)
				if err != nil {
					return failed("load data", err)
				}
				if flags.Output != "" {
					sheet := export.YearSheet{Name: fmt.Sprintf("Revenue %d", p.Year), Rows: yearRows(ds, p)}
					if err := writeWorkbook(flags.Output, sheet); err != nil {
						return err
					}
					return opts.output(cmd).Message(fmt.Sprintf("Wrote %s.", flags.Output), map[string]string{"file": flags.Output})
				}
				return opts.output(cmd).Table(render(ds, p))
			})
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "write client-revenue-year as an .xlsx workbook")
	return cmd
}

// =============================================================================
// TABLES
// =============================================================================

func allocationsTable(ds *staffing.Dataset, p reportParams) Table {
	t := Table{Headers: []string{"id", "engineer", "project", "client", "start_date", "end_date", "status", "rate"}}
	for _, v := range staffing.CurrentAllocations(ds, p.AsOf, p.IncludeProvisional) {
		t.Rows = append(t.Rows, []string{
			id(v.ID), v.EngineerName, v.ProjectName, v.ClientName,
			v.Start.String(), generic.FormatOptional(v.End), string(v.Status), generic.FormatRate(v.Rate),
		})
	}
	return t
}

func projectTable(views []staffing.ProjectView) Table {
	t := Table{Headers: []string{"id", "name", "client", "start_date", "end_date", "status"}}
	for _, v := range views {
		t.Rows = append(t.Rows, []string{
			id(v.ID), v.Name, v.ClientName, v.Start.String(), generic.FormatOptional(v.End), string(v.Status),
		})
	}
	return t
}

func endingDetailsTable(ds *staffing.Dataset, p reportParams) Table {
	t := Table{Headers: []string{"id", "name", "client", "end_date", "allocations", "to_date", "total"}}
	for _, d := range staffing.ProjectsEndingWithDetails(ds, p.AsOf, p.Within, p.IncludeProvisional) {
		t.Rows = append(t.Rows, []string{
			id(d.ID), d.Name, d.ClientName, generic.FormatOptional(d.End),
			strings.Join(d.Allocations, "; "), generic.FormatMoney(d.ToDate), generic.FormatMoney(d.Total),
		})
	}
	return t
}

func revenueTable(by func(*staffing.Dataset, generic.Date, bool) []staffing.RevenueLine) reportFunc {
	return func(ds *staffing.Dataset, p reportParams) Table {
		t := Table{Headers: []string{"id", "name", "to_date", "total"}}
		for _, l := range by(ds, p.AsOf, p.IncludeProvisional) {
			t.Rows = append(t.Rows, []string{id(l.ID), l.Name, generic.FormatMoney(l.ToDate), generic.FormatMoney(l.Total)})
		}
		return t
	}
}

func rollupTable(ds *staffing.Dataset, p reportParams) Table {
	rows := staffing.Aggregate(ds, staffing.Query{
		Mode:               staffing.ModeSnapshot,
		AsOf:               p.AsOf,
		IncludeProvisional: p.IncludeProvisional,
	})
	t := Table{Headers: []string{"type", "label", "to_date", "total"}}
	for _, r := range rows {
		t.Rows = append(t.Rows, []string{string(r.Type), export.Label(r), generic.FormatMoney(r.ToDate), generic.FormatMoney(r.Total)})
	}
	return t
}

func yearRows(ds *staffing.Dataset, p reportParams) []staffing.Row {
	return staffing.Aggregate(ds, staffing.Query{
		Mode:               staffing.ModeYear,
		Year:               p.Year,
		IncludeProvisional: p.IncludeProvisional,
	})
}

// YearTable renders year-mode rows: a label column, then Jan..Dec and total.
func YearTable(rows []staffing.Row) Table {
	t := Table{Headers: append([]string{"label"}, generic.Columns()...)}
	for _, r := range rows {
		line := []string{export.Label(r)}
		for _, m := range r.Months {
			line = append(line, generic.FormatMoney(m))
		}
		t.Rows = append(t.Rows, append(line, generic.FormatMoney(r.Total)))
	}
	return t
}

func writeWorkbook(path string, sheets ...export.YearSheet) error {
	f, err := os.Create(path)
	if err != nil {
		return WrapExitError(ExitFailure, "create workbook", err)
	}
	if err := export.WriteYear(f, sheets...); err != nil {
		f.Close()
		return WrapExitError(ExitFailure, "write workbook", err)
	}
	if err := f.Close(); err != nil {
		return WrapExitError(ExitFailure, "write workbook", err)
	}
	return nil
}
