package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akyairhashvil/sprintledger/internal/models"
)

type cli struct {
	t *testing.T
}

// newCLI points sprintctl at a fresh SQLite file through the environment.
func newCLI(t *testing.T) cli {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("SPRINTLEDGER_DATABASE_PATH", filepath.Join(dir, "ledger.db"))
	t.Setenv("SPRINTLEDGER_REPORT_DIR", filepath.Join(dir, "reports"))
	t.Setenv("SPRINTLEDGER_LOG_LEVEL", "error")
	return cli{t: t}
}

func (c cli) run(args ...string) (string, string, int) {
	c.t.Helper()
	var out, errOut bytes.Buffer
	code := run(context.Background(), args, strings.NewReader(""), &out, &errOut)
	return out.String(), errOut.String(), code
}

func (c cli) mustRun(args ...string) string {
	c.t.Helper()
	out, errOut, code := c.run(args...)
	if code != exitOK {
		c.t.Fatalf("sprintctl %s exited %d: %s", strings.Join(args, " "), code, errOut)
	}
	return out
}

// seed creates project #1 with columns To Do (#1), In Progress (#2), Done (#3),
// sprint #1 and three tickets in it, the first of them done.
func (c cli) seed() {
	c.t.Helper()
	c.mustRun("project", "create", "Board")
	c.mustRun("--project", "1", "sprint", "create")
	c.mustRun("--project", "1", "ticket", "create", "Ship login", "--points", "5", "--sprint", "1", "--column", "Done")
	c.mustRun("--project", "1", "ticket", "create", "Write docs", "--points", "3", "--sprint", "1", "--column", "In Progress")
	c.mustRun("--project", "1", "ticket", "create", "Fix flake", "--sprint", "1")
}

func TestCompleteFlow(t *testing.T) {
	c := newCLI(t)
	c.seed()

	out := c.mustRun("--project", "1", "sprint", "start", "1")
	if !strings.Contains(out, "Sprint 1 [active]") {
		t.Fatalf("unexpected start output %q", out)
	}

	out = c.mustRun("--project", "1", "sprint", "complete", "1", "--action", "close_to_next", "--yes")
	if !strings.Contains(out, "completed: 1  carried over: 2  moved to backlog: 0") {
		t.Fatalf("unexpected complete output %q", out)
	}
	if !strings.Contains(out, "into new sprint #2 Sprint 2 [planning]") {
		t.Fatalf("expected new sprint in output %q", out)
	}

	out = c.mustRun("--project", "1", "ticket", "history", "2")
	if !strings.Contains(out, "sprint #1 added") || !strings.Contains(out, "(carried_over)") {
		t.Fatalf("unexpected ticket history %q", out)
	}
	if !strings.Contains(out, "sprint #2 carried_over") || !strings.Contains(out, "(open)") {
		t.Fatalf("expected open carried-over entry in %q", out)
	}

	out = c.mustRun("--project", "1", "sprint", "report", "1")
	if !strings.Contains(out, "Carried over (2)") {
		t.Fatalf("unexpected report %q", out)
	}
}

func TestCompleteJSON(t *testing.T) {
	c := newCLI(t)
	c.seed()
	c.mustRun("--project", "1", "sprint", "start", "1")
	out := c.mustRun("--project", "1", "--json", "sprint", "complete", "1", "--action", "close_to_backlog", "--yes")

	var res struct {
		Sprint      models.Sprint
		Disposition struct {
			Completed      []int64 `json:"completed"`
			MovedToBacklog []int64 `json:"moved_to_backlog"`
			CarriedOver    []int64 `json:"carried_over"`
		} `json:"disposition"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(res.Disposition.Completed) != 1 || len(res.Disposition.MovedToBacklog) != 2 || len(res.Disposition.CarriedOver) != 0 {
		t.Fatalf("unexpected disposition %+v", res.Disposition)
	}
}

func TestStartConflictIsRejected(t *testing.T) {
	c := newCLI(t)
	c.seed()
	c.mustRun("--project", "1", "sprint", "create", "--name", "Hotfix")
	c.mustRun("--project", "1", "sprint", "start", "1")

	_, errOut, code := c.run("--project", "1", "sprint", "start", "2")
	if code != exitRejected {
		t.Fatalf("expected exit %d, got %d (%s)", exitRejected, code, errOut)
	}
	if !strings.Contains(errOut, `complete "Sprint 1" first`) {
		t.Fatalf("expected blocking sprint in error, got %q", errOut)
	}
}

func TestInvalidTransitionExitCode(t *testing.T) {
	c := newCLI(t)
	c.seed()
	_, errOut, code := c.run("--project", "1", "sprint", "reopen", "1")
	if code != exitRejected {
		t.Fatalf("expected exit %d, got %d (%s)", exitRejected, code, errOut)
	}
}

func TestProjectFlagRequired(t *testing.T) {
	c := newCLI(t)
	_, errOut, code := c.run("sprint", "list")
	if code != exitError || !strings.Contains(errOut, "--project is required") {
		t.Fatalf("unexpected result %d %q", code, errOut)
	}
}

func TestExtendAndList(t *testing.T) {
	c := newCLI(t)
	c.seed()
	c.mustRun("--project", "1", "sprint", "start", "1", "--start", "2030-01-01", "--end", "2030-01-15")
	out := c.mustRun("--project", "1", "sprint", "extend", "1", "--days", "3")
	if !strings.Contains(out, "2030-01-01 -> 2030-01-18") {
		t.Fatalf("unexpected extend output %q", out)
	}
	_, _, code := c.run("--project", "1", "sprint", "extend", "1", "--end", "2001-01-01")
	if code != exitRejected {
		t.Fatalf("expected past end date to be rejected, got %d", code)
	}
	out = c.mustRun("--project", "1", "sprint", "list")
	if !strings.Contains(out, "#1 Sprint 1 [active]") {
		t.Fatalf("unexpected list %q", out)
	}
}

func TestTicketMoveNeedsOneTarget(t *testing.T) {
	c := newCLI(t)
	c.seed()
	if _, _, code := c.run("--project", "1", "ticket", "move", "1"); code != exitError {
		t.Fatalf("expected error without target, got %d", code)
	}
	out := c.mustRun("--project", "1", "ticket", "move", "1", "--backlog")
	if !strings.Contains(out, "[backlog]") {
		t.Fatalf("unexpected move output %q", out)
	}
}

func TestExportYAML(t *testing.T) {
	c := newCLI(t)
	c.seed()
	out := c.mustRun("--project", "1", "export", "--format", "yaml")
	for _, want := range []string{"project: Board", "name: Sprint 1", "title: Ship login"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in export:\n%s", want, out)
		}
	}
}

func TestParseDate(t *testing.T) {
	d, err := parseDate("2026-03-01")
	if err != nil || d.Format("2006-01-02") != "2026-03-01" {
		t.Fatalf("parseDate day: %v %v", d, err)
	}
	d, err = parseDate("2026-03-01T10:00:00+02:00")
	if err != nil || d.Hour() != 8 {
		t.Fatalf("expected UTC conversion, got %v %v", d, err)
	}
	if d, err := parseDate(""); d != nil || err != nil {
		t.Fatalf("expected nil for empty date")
	}
	if _, err := parseDate("tomorrow"); err == nil {
		t.Fatalf("expected error for invalid date")
	}
}

func TestParseIDList(t *testing.T) {
	ids, err := parseIDList("3, 5")
	if err != nil || len(ids) != 2 || ids[0] != 3 || ids[1] != 5 {
		t.Fatalf("unexpected ids %v %v", ids, err)
	}
	if ids, _ := parseIDList(""); ids != nil {
		t.Fatalf("expected nil for empty list")
	}
	if _, err := parseIDList("3,x"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestResolveColumn(t *testing.T) {
	cols := []models.Column{{ID: 4, Name: "To Do"}, {ID: 9, Name: "Done"}}
	if c, _ := resolveColumn(cols, ""); c.ID != 4 {
		t.Fatalf("expected first column, got %d", c.ID)
	}
	if c, _ := resolveColumn(cols, "9"); c.ID != 9 {
		t.Fatalf("expected column by id, got %d", c.ID)
	}
	if c, _ := resolveColumn(cols, "done"); c.ID != 9 {
		t.Fatalf("expected column by name, got %d", c.ID)
	}
	if _, err := resolveColumn(cols, "Blocked"); err == nil {
		t.Fatalf("expected unknown column error")
	}
}
