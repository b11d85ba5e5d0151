/*
Package cli implements the staffing command-line interface.

PURPOSE:
  The same store, reports and scenario engine the HTTP API serves, driven
  from a terminal. Every command opens the database, does one thing and
  closes it again.

COMMANDS:
  init-db                                   Create or migrate the schema
  seed <file.yaml>                          Load a YAML data file
  client add|remove|contact                 Manage clients and contacts
  engineer add|remove                       Manage engineers
  project add|remove                        Manage projects
  allocation add|remove                     Manage allocations
  report <name>                             Point-in-time and year reports
  scenario list|create|add-change|changes|report|export

GLOBAL FLAGS:
  --db       SQLite database path (default: config db.path)
  --config   YAML config file (default: $STAFFING_CONFIG_PATH)
  --format   text | json

OUTPUT:
  Text output is tab-separated with a header row, or "(no results)".
  JSON output wraps the payload as {"status": "ok", "data": ...}.

SEE ALSO:
  - output.go: Formatting and exit codes
  - cmd/staffing/main.go: Entry point
*/
package cli

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/warp/staffing-engine/config"
	"github.com/warp/staffing-engine/factory"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/scenario"
	"github.com/warp/staffing-engine/store/sqlite"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB         string
	ConfigPath string
	Format     string // "json" | "text"

	// Today is the default as-of date of reports.
	Today func() generic.Date

	cfg config.Config
	log *logrus.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the staffing CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Today: generic.Today})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "staffing",
		Short: "Staffing and revenue forecasting",
		Long:  "Manage engineers, clients, projects and allocations, report revenue, and explore what-if scenarios.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.Load(opts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}
			if opts.DB != "" {
				cfg.DB.Path = opts.DB
			}
			logger, err := config.NewLogger(cfg.Log)
			if err != nil {
				return WrapExitError(ExitCommandError, "configure logging", err)
			}
			logger.SetOutput(cmd.ErrOrStderr())
			opts.cfg = cfg
			opts.log = logger
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "SQLite database path (default: config db.path)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewInitDBCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewClientCommand(opts))
	cmd.AddCommand(NewEngineerCommand(opts))
	cmd.AddCommand(NewProjectCommand(opts))
	cmd.AddCommand(NewAllocationCommand(opts))
	cmd.AddCommand(NewReportCommand(opts))
	cmd.AddCommand(NewScenarioCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// =============================================================================
// SESSION
// =============================================================================

// session is an open database plus the engine built over it.
type session struct {
	Store  *sqlite.Store
	Engine *scenario.Engine
}

// open opens the configured database, running migrations.
func (o *RootOptions) open() (*session, error) {
	entry := o.log.WithField("component", "cli")
	store, err := sqlite.New(o.cfg.DB.Path, sqlite.WithLogger(entry))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open database", err)
	}
	changes := generic.NewChangeLog(store)
	return &session{
		Store:  store,
		Engine: scenario.NewEngine(store, store, changes, factory.NewChangeFactory(), entry),
	}, nil
}

func (s *session) Close() error { return s.Store.Close() }

// withSession opens the database around fn.
func (o *RootOptions) withSession(ctx context.Context, fn func(context.Context, *session) error) error {
	s, err := o.open()
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(ctx, s)
}
