package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/staffing-engine/generic"
	"github.com/xuri/excelize/v2"
)

// =============================================================================
// HARNESS
// =============================================================================

type testCLI struct {
	db string
}

func newTestCLI(t *testing.T) *testCLI {
	t.Helper()
	t.Setenv("STAFFING_CONFIG_PATH", "")
	t.Setenv("STAFFING_DB", "")
	t.Setenv("STAFFING_LOG_LEVEL", "")
	t.Setenv("STAFFING_INCLUDE_PROVISIONAL", "")
	t.Setenv("STAFFING_ENDING_WITHIN_DAYS", "")
	return &testCLI{db: filepath.Join(t.TempDir(), "staffing.db")}
}

// exec runs one command against the test database.
func (c *testCLI) exec(args ...string) (string, error) {
	opts := &RootOptions{Today: func() generic.Date { return generic.MustParseDate("2026-03-15") }}
	cmd := newRootCommand(opts)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(append([]string{"--db", c.db}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func (c *testCLI) run(t *testing.T, args ...string) string {
	t.Helper()
	out, err := c.exec(args...)
	require.NoError(t, err, "staffing %v", args)
	return out
}

// seed creates Acme, Ava at 1000/day and Ben without a rate, the Platform
// project for Q1 2026 and Ava on it for January.
func (c *testCLI) seed(t *testing.T) {
	t.Helper()
	c.run(t, "client", "add", "Acme")
	c.run(t, "engineer", "add", "Ava", "--level", "3", "--cohort", "2", "--day-rate", "1000")
	c.run(t, "engineer", "add", "Ben", "--level", "2", "--cohort", "1")
	c.run(t, "project", "add", "1", "Platform", "2026-01-01", "2026-03-31")
	c.run(t, "allocation", "add", "1", "1", "2026-01-01", "2026-01-31")
}

func golden(t *testing.T) *goldie.Goldie {
	return goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
}

// =============================================================================
// COMMANDS
// =============================================================================

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "staffing", cmd.Use)

	for _, name := range []string{"init-db", "seed", "client", "engineer", "project", "allocation", "report", "scenario"} {
		t.Run(name, func(t *testing.T) {
			sub, _, err := cmd.Find([]string{name})
			require.NoError(t, err)
			assert.Equal(t, name, sub.Name())
		})
	}

	format := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, format)
	assert.Equal(t, "text", format.DefValue)
	require.NotNil(t, cmd.PersistentFlags().Lookup("db"))
	require.NotNil(t, cmd.PersistentFlags().Lookup("config"))
}

func TestCLI_CreateMessages(t *testing.T) {
	c := newTestCLI(t)

	assert.Equal(t, "Database initialized.\n", c.run(t, "init-db"))
	assert.Equal(t, "Client added with id 1.\n", c.run(t, "client", "add", "Acme"))
	assert.Equal(t, "Contact added with id 1.\n", c.run(t, "client", "add-contact", "1", "Dana", "--email", "dana@acme.test"))
	assert.Equal(t, "Engineer added with id 1.\n", c.run(t, "engineer", "add", "Ava", "--level", "3", "--cohort", "2"))
	assert.Equal(t, "Project added with id 1.\n", c.run(t, "project", "add", "1", "Open", "2026-01-01", "open"))
	assert.Equal(t, "Allocation added with id 1.\n", c.run(t, "allocation", "add", "1", "1", "2026-02-01", "-"))
	assert.Equal(t, "Allocation removed.\n", c.run(t, "allocation", "remove", "1"))
	assert.Equal(t, "Client removed.\n", c.run(t, "client", "remove", "1"))
	assert.Equal(t, "(no results)\n", c.run(t, "project", "list"))
}

func TestCLI_Errors(t *testing.T) {
	c := newTestCLI(t)
	c.seed(t)

	tests := []struct {
		name string
		args []string
		code int
	}{
		{"bad format", []string{"--format", "xml", "client", "list"}, ExitCommandError},
		{"unknown id", []string{"client", "remove", "9"}, ExitFailure},
		{"non-numeric id", []string{"engineer", "remove", "abc"}, ExitCommandError},
		{"level out of range", []string{"engineer", "add", "Zed", "--level", "6", "--cohort", "1"}, ExitCommandError},
		{"bad date", []string{"project", "add", "1", "X", "2026-13-01", "open"}, ExitCommandError},
		{"outside project window", []string{"allocation", "add", "2", "1", "2026-03-01", "2026-04-30"}, ExitCommandError},
		{"duplicate client", []string{"client", "add", "Acme"}, ExitFailure},
		{"unknown report", []string{"report", "payroll"}, ExitCommandError},
		{"unknown scenario", []string{"scenario", "report", "7"}, ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.exec(tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.code, GetExitCode(err))
		})
	}
}

// =============================================================================
// REPORTS
// =============================================================================

func TestCLI_ClientRevenueYear(t *testing.T) {
	// GIVEN: Ava billing 1000/day for January
	c := newTestCLI(t)
	c.seed(t)

	// WHEN: The 2026 year report is printed
	out := c.run(t, "report", "client-revenue-year", "--year", "2026")

	// THEN: It matches the golden table
	golden(t).Assert(t, "client_revenue_year", []byte(out))
}

func TestCLI_PointInTimeReports(t *testing.T) {
	c := newTestCLI(t)
	c.seed(t)

	out := c.run(t, "report", "unallocated", "--as-of", "2026-01-15")
	assert.Equal(t, "id\tname\tlevel\tcohort\tday_rate\tactive\n2\tBen\t2\t1\t-\ttrue\n", out)

	// Default as-of is 2026-03-15: Ava's allocation has ended.
	out = c.run(t, "report", "allocations")
	assert.Equal(t, "(no results)\n", out)

	out = c.run(t, "report", "client-revenue", "--as-of", "2026-01-10")
	assert.Equal(t, "id\tname\tto_date\ttotal\n1\tAcme\t10000.00\t31000.00\n", out)

	out = c.run(t, "report", "projects-ending", "--within", "30")
	assert.Equal(t, "id\tname\tclient\tstart_date\tend_date\tstatus\n1\tPlatform\tAcme\t2026-01-01\t2026-03-31\tconfirmed\n", out)
}

func TestCLI_JSONOutput(t *testing.T) {
	c := newTestCLI(t)
	c.seed(t)

	out := c.run(t, "--format", "json", "report", "engineer-revenue", "--as-of", "2026-03-15")

	var resp struct {
		Status string              `json:"status"`
		Data   []map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, map[string]string{"id": "1", "name": "Ava", "to_date": "31000.00", "total": "31000.00"}, resp.Data[0])
	assert.Equal(t, "0.00", resp.Data[1]["total"])
}

func TestCLI_ExportYearWorkbook(t *testing.T) {
	c := newTestCLI(t)
	c.seed(t)
	path := filepath.Join(t.TempDir(), "revenue.xlsx")

	out := c.run(t, "report", "client-revenue-year", "--year", "2026", "--output", path)

	assert.Equal(t, "Wrote "+path+".\n", out)
	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Revenue 2026"}, f.GetSheetList())
	v, err := f.GetCellValue("Revenue 2026", "B2", excelize.Options{RawCellValue: true})
	require.NoError(t, err)
	assert.Equal(t, "31000", v)
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestCLI_ScenarioReport(t *testing.T) {
	// GIVEN: A scenario raising Ava's rate to 1200
	c := newTestCLI(t)
	c.seed(t)
	assert.Equal(t, "Scenario created with id 1.\n", c.run(t, "scenario", "create", "Rate review"))
	out := c.run(t, "scenario", "add-change", "1", "engineer_rate", `{"engineer_id":1,"new_day_rate":"1200"}`, "--key", "rate-1")
	assert.Equal(t, "Change recorded with seq 1.\n", out)

	// WHEN: The report is printed with attributions
	out = c.run(t, "scenario", "report", "1", "--year", "2026", "--explain")

	// THEN: Dirty cells are starred and each is explained
	golden(t).Assert(t, "scenario_report", []byte(out))
}

func TestCLI_ScenarioChanges(t *testing.T) {
	c := newTestCLI(t)
	c.seed(t)
	c.run(t, "scenario", "create", "Rate review")
	c.run(t, "scenario", "add-change", "1", "cell_adjust", `{"client_id":1,"month":"Feb","amount":"250.50"}`, "--key", "adj-1")

	// Rejected changes are not recorded.
	_, err := c.exec("scenario", "add-change", "1", "cell_adjust", `{"client_id":1,"month":"Smarch","amount":"1"}`)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	_, err = c.exec("scenario", "add-change", "1", "engineer_hire", `{"name":"Zed"}`)
	require.Error(t, err)
	_, err = c.exec("scenario", "add-change", "1", "cell_adjust", `{"client_id":1,"month":"Feb","amount":"1"}`, "--key", "adj-1")
	require.Error(t, err, "idempotency key reused")

	out := c.run(t, "scenario", "changes", "1")
	assert.Equal(t, "seq\tkind\tidempotency_key\tpayload\n"+
		"1\tcell_adjust\tadj-1\t{\"client_id\":1,\"month\":\"Feb\",\"amount\":\"250.50\"}\n", out)
}

func TestCLI_SeedDemo(t *testing.T) {
	c := newTestCLI(t)

	out := c.run(t, "seed", "--demo")

	assert.Equal(t, "Loaded 3 clients, 6 engineers, 4 projects, 6 allocations, 2 scenarios (7 changes).\n", out)
	out = c.run(t, "client", "list")
	assert.Equal(t, "id\tname\n1\tAcme Corp\n2\tBorealis Energy\n3\tCobalt Health\n", out)

	_, err := c.exec("seed")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
