package cli

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/warp/staffing-engine/generic"
	"github.com/warp/staffing-engine/seed"
	"github.com/warp/staffing-engine/staffing"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// =============================================================================
// DATABASE
// =============================================================================

// NewInitDBCommand creates the init-db command.
func NewInitDBCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init-db",
		Short: "Initialize the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				return opts.output(cmd).Message("Database initialized.", map[string]string{"db": opts.cfg.DB.Path})
			})
		},
	}
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed [file.yaml]",
		Short: "Load clients, engineers, projects, allocations and scenarios from YAML",
		Long: `Load a YAML data file into the database. Entities refer to each other by
name; scenario changes may use engineer/project/client/allocation names
in place of ids.

Examples:
  staffing seed data.yaml
  staffing seed --demo`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				doc *seed.Document
				err error
			)
			switch {
			case demo:
				doc, err = seed.Demo()
			case len(args) == 1:
				var data []byte
				if data, err = os.ReadFile(args[0]); err == nil {
					doc, err = seed.Parse(data)
				}
			default:
				return NewExitError(ExitCommandError, "a file or --demo is required")
			}
			if err != nil {
				return WrapExitError(ExitCommandError, "read seed data", err)
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				sum, err := seed.Load(ctx, s.Store, s.Engine, doc)
				if err != nil {
					return failed("seed", err)
				}
				msg := fmt.Sprintf("Loaded %d clients, %d engineers, %d projects, %d allocations, %d scenarios (%d changes).",
					sum.Clients, sum.Engineers, sum.Projects, sum.Allocations, sum.Scenarios, sum.Changes)
				return opts.output(cmd).Message(msg, sum)
			})
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "load the built-in demo data")
	return cmd
}

// =============================================================================
// CLIENTS
// =============================================================================

// NewClientCommand creates the client command group.
func NewClientCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "client", Short: "Manage clients"}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name>",
		Short: "Add a client",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				c, err := s.Store.CreateClient(ctx, args[0])
				if err != nil {
					return failed("add client", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Client added with id %d.", c.ID), map[string]int64{"id": c.ID})
			})
		},
	})

	cmd.AddCommand(removeCommand(opts, "client", func(ctx context.Context, s *session, id int64) error {
		return s.Store.DeleteClient(ctx, id)
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List clients",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				clients, err := s.Store.ListClients(ctx)
				if err != nil {
					return failed("list clients", err)
				}
				t := Table{Headers: []string{"id", "name"}}
				for _, c := range clients {
					t.Rows = append(t.Rows, []string{id(c.ID), c.Name})
				}
				return opts.output(cmd).Table(t)
			})
		},
	})

	var email, phone string
	addContact := &cobra.Command{
		Use:   "add-contact <client-id> <name>",
		Short: "Add a contact for a client",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				c, err := s.Store.CreateContact(ctx, staffing.Contact{ClientID: clientID, Name: args[1], Email: email, Phone: phone})
				if err != nil {
					return failed("add contact", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Contact added with id %d.", c.ID), map[string]int64{"id": c.ID})
			})
		},
	}
	addContact.Flags().StringVar(&email, "email", "", "contact email")
	addContact.Flags().StringVar(&phone, "phone", "", "contact phone")
	cmd.AddCommand(addContact)

	cmd.AddCommand(&cobra.Command{
		Use:   "contacts <client-id>",
		Short: "List a client's contacts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				contacts, err := s.Store.ListContacts(ctx, clientID)
				if err != nil {
					return failed("list contacts", err)
				}
				t := Table{Headers: []string{"id", "name", "email", "phone"}}
				for _, c := range contacts {
					t.Rows = append(t.Rows, []string{id(c.ID), c.Name, c.Email, c.Phone})
				}
				return opts.output(cmd).Table(t)
			})
		},
	})

	return cmd
}

// =============================================================================
// ENGINEERS
// =============================================================================

// NewEngineerCommand creates the engineer command group.
func NewEngineerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "engineer", Short: "Manage engineers"}

	var (
		level, cohort int
		dayRate       string
		inactive      bool
	)
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Add an engineer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rate, err := parseRate("day-rate", dayRate)
			if err != nil {
				return err
			}
			e := staffing.Engineer{Name: args[0], Level: level, Cohort: cohort, DayRate: rate, Active: !inactive}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				e, err := s.Store.CreateEngineer(ctx, e)
				if err != nil {
					return failed("add engineer", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Engineer added with id %d.", e.ID), map[string]int64{"id": e.ID})
			})
		},
	}
	add.Flags().IntVar(&level, "level", 0, "seniority level (1-5)")
	add.Flags().IntVar(&cohort, "cohort", 0, "cohort number (1-8)")
	add.Flags().StringVar(&dayRate, "day-rate", "", "personal day rate")
	add.Flags().BoolVar(&inactive, "inactive", false, "add as inactive")
	_ = add.MarkFlagRequired("level")
	_ = add.MarkFlagRequired("cohort")
	cmd.AddCommand(add)

	cmd.AddCommand(removeCommand(opts, "engineer", func(ctx context.Context, s *session, id int64) error {
		return s.Store.DeleteEngineer(ctx, id)
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List engineers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				engineers, err := s.Store.ListEngineers(ctx)
				if err != nil {
					return failed("list engineers", err)
				}
				return opts.output(cmd).Table(engineerTable(engineers))
			})
		},
	})

	return cmd
}

func engineerTable(engineers []staffing.Engineer) Table {
	t := Table{Headers: []string{"id", "name", "level", "cohort", "day_rate", "active"}}
	for _, e := range engineers {
		t.Rows = append(t.Rows, []string{
			id(e.ID), e.Name, strconv.Itoa(e.Level), strconv.Itoa(e.Cohort),
			generic.FormatRate(e.DayRate), strconv.FormatBool(e.Active),
		})
	}
	return t
}

// =============================================================================
// PROJECTS
// =============================================================================

// NewProjectCommand creates the project command group.
func NewProjectCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "project", Short: "Manage projects"}

	var agreedRate, status string
	add := &cobra.Command{
		Use:   "add <client-id> <name> <start-date> <end-date|open>",
		Short: "Add a project",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			clientID, err := parseID(args[0])
			if err != nil {
				return err
			}
			start, end, err := parseWindow(args[2], args[3])
			if err != nil {
				return err
			}
			rate, err := parseRate("agreed-rate", agreedRate)
			if err != nil {
				return err
			}
			p := staffing.Project{ClientID: clientID, Name: args[1], Start: start, End: end, AgreedRate: rate, Status: staffing.Status(status)}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				p, err := s.Store.CreateProject(ctx, p)
				if err != nil {
					return failed("add project", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Project added with id %d.", p.ID), map[string]int64{"id": p.ID})
			})
		},
	}
	add.Flags().StringVar(&agreedRate, "agreed-rate", "", "rate overriding engineer day rates")
	add.Flags().StringVar(&status, "status", string(staffing.StatusConfirmed), "confirmed or provisional")
	cmd.AddCommand(add)

	cmd.AddCommand(removeCommand(opts, "project", func(ctx context.Context, s *session, id int64) error {
		return s.Store.DeleteProject(ctx, id)
	}))

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List projects",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				projects, err := s.Store.ListProjects(ctx)
				if err != nil {
					return failed("list projects", err)
				}
				t := Table{Headers: []string{"id", "client_id", "name", "start_date", "end_date", "agreed_rate", "status"}}
				for _, p := range projects {
					t.Rows = append(t.Rows, []string{
						id(p.ID), id(p.ClientID), p.Name, p.Start.String(), generic.FormatOptional(p.End),
						generic.FormatRate(p.AgreedRate), string(p.Status),
					})
				}
				return opts.output(cmd).Table(t)
			})
		},
	})

	return cmd
}

// =============================================================================
// ALLOCATIONS
// =============================================================================

// NewAllocationCommand creates the allocation command group.
func NewAllocationCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{Use: "allocation", Short: "Manage allocations"}

	var status string
	add := &cobra.Command{
		Use:   "add <engineer-id> <project-id> <start-date> <end-date|open>",
		Short: "Allocate an engineer to a project for a date range",
		Long: `Allocate an engineer to a project. The window must fall inside the
project's window; an open-ended allocation needs an open-ended project.
Without --status the allocation takes the project's status.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			engineerID, err := parseID(args[0])
			if err != nil {
				return err
			}
			projectID, err := parseID(args[1])
			if err != nil {
				return err
			}
			start, end, err := parseWindow(args[2], args[3])
			if err != nil {
				return err
			}
			a := staffing.Allocation{EngineerID: engineerID, ProjectID: projectID, Start: start, End: end, Status: staffing.Status(status)}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				a, err := s.Store.CreateAllocation(ctx, a)
				if err != nil {
					return failed("add allocation", err)
				}
				return opts.output(cmd).Message(fmt.Sprintf("Allocation added with id %d.", a.ID), map[string]int64{"id": a.ID})
			})
		},
	}
	add.Flags().StringVar(&status, "status", "", "confirmed or provisional (default: the project's)")
	cmd.AddCommand(add)

	cmd.AddCommand(removeCommand(opts, "allocation", func(ctx context.Context, s *session, id int64) error {
		return s.Store.DeleteAllocation(ctx, id)
	}))

	return cmd
}

// =============================================================================
// HELPERS
// =============================================================================

func removeCommand(opts *RootOptions, entity string, remove func(context.Context, *session, int64) error) *cobra.Command {
	title := cases.Title(language.English).String(entity)
	return &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a " + entity,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			entityID, err := parseID(args[0])
			if err != nil {
				return err
			}
			return opts.withSession(cmd.Context(), func(ctx context.Context, s *session) error {
				if err := remove(ctx, s, entityID); err != nil {
					return failed("remove "+entity, err)
				}
				return opts.output(cmd).Message(title+" removed.", map[string]int64{"id": entityID})
			})
		},
	}
}

func id(v int64) string { return strconv.FormatInt(v, 10) }

func parseID(s string) (int64, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s))
	}
	return v, nil
}

// parseWindow reads a start date and an end date, where "open", "none"
// and "-" mean open-ended.
func parseWindow(startArg, endArg string) (generic.Date, *generic.Date, error) {
	start, err := generic.ParseDate(startArg)
	if err != nil {
		return start, nil, WrapExitError(ExitCommandError, "start date", err)
	}
	switch strings.ToLower(endArg) {
	case "open", "none", "-":
		return start, nil, nil
	}
	end, err := generic.ParseDate(endArg)
	if err != nil {
		return start, nil, WrapExitError(ExitCommandError, "end date", err)
	}
	return start, &end, nil
}

func parseRate(flag, s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("invalid --%s %q", flag, s))
	}
	return &d, nil
}
