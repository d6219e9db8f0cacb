// Command sprintctl drives the sprint lifecycle engine from the shell.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/akyairhashvil/sprintledger/internal/access"
	"github.com/akyairhashvil/sprintledger/internal/config"
	"github.com/akyairhashvil/sprintledger/internal/database"
	"github.com/akyairhashvil/sprintledger/internal/events"
	"github.com/akyairhashvil/sprintledger/internal/lifecycle"
	"github.com/akyairhashvil/sprintledger/internal/models"
	"github.com/akyairhashvil/sprintledger/internal/pgstore"
	"github.com/akyairhashvil/sprintledger/internal/storage"
	"github.com/akyairhashvil/sprintledger/internal/telemetry"
	"github.com/akyairhashvil/sprintledger/internal/util"
)

var (
	Version = "dev"
	Build   = "unknown"
)

// Exit codes.
const (
	exitOK       = 0
	exitError    = 1
	exitRejected = 2 // a lifecycle rule refused the operation
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app carries everything a subcommand needs. It is filled in by the root
// command's PersistentPreRunE.
type app struct {
	in     io.Reader
	out    io.Writer
	errOut io.Writer

	configPath string
	userID     int64
	projectID  int64
	jsonOut    bool

	cfg    config.Config
	logger *slog.Logger
	store  storage.Store
	ctrl   *lifecycle.Controller
	bus    *events.Bus
	sub    chan events.Event
}

func run(ctx context.Context, args []string, in io.Reader, out, errOut io.Writer) int {
	a := &app{in: in, out: out, errOut: errOut}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(in)
	root.SetOut(out)
	root.SetErr(errOut)

	err := root.ExecuteContext(ctx)
	a.close(ctx)
	if err != nil {
		fmt.Fprintf(errOut, "Error: %v\n", err)
		if lifecycle.IsBusinessError(err) {
			return exitRejected
		}
		return exitError
	}
	return exitOK
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sprintctl",
		Short:         "sprintctl - sprint lifecycle and ticket disposition",
		Long:          `Start, complete, reopen and extend sprints, and route unfinished tickets when a sprint closes.`,
		Version:       fmt.Sprintf("%s (%s)", Version, Build),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "config file (YAML)")
	root.PersistentFlags().Int64Var(&a.userID, "user", 1, "acting user id")
	root.PersistentFlags().Int64Var(&a.projectID, "project", 0, "project id")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON")

	root.AddCommand(newProjectCmd(a), newColumnCmd(a), newTicketCmd(a), newSprintCmd(a), newExportCmd(a))
	return root
}

func (a *app) setup(ctx context.Context) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg
	if a.logger, err = util.NewLogger(a.errOut, cfg.Log.Level); err != nil {
		return err
	}
	slog.SetDefault(a.logger)

	if err := telemetry.Init(ctx, cfg.Telemetry, config.AppName, Version); err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	if a.store, err = openStore(ctx, cfg.Database); err != nil {
		return err
	}

	a.bus = events.NewBus(a.logger)
	a.sub = a.bus.Subscribe()
	a.ctrl = lifecycle.New(a.store,
		lifecycle.WithAuthorizer(access.NewStatic(cfg.Access)),
		lifecycle.WithNotifier(a.bus),
		lifecycle.WithDonePredicate(lifecycle.KeywordPredicate(cfg.Lifecycle.DoneKeywords...)),
		lifecycle.WithExtendDays(cfg.Lifecycle.ExtendDays),
		lifecycle.WithTimeouts(cfg.Timeouts.Operation, cfg.Timeouts.Completion),
		lifecycle.WithLogger(a.logger),
	)
	return nil
}

func openStore(ctx context.Context, cfg config.DatabaseConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.DriverPostgres:
		return pgstore.Open(ctx, cfg.DSN)
	default:
		path := cfg.Path
		if path == "" {
			dir := util.DataDir(config.AppName)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
			path = filepath.Join(dir, config.DBFileName)
		}
		return database.Open(ctx, path)
	}
}

// close logs the events the command produced, then releases the store and
// flushes telemetry.
func (a *app) close(ctx context.Context) {
	if a.bus != nil {
		a.drainEvents()
		a.bus.Unsubscribe(a.sub)
	}
	if a.store != nil {
		util.LogError(a.logger, "close store", a.store.Close())
	}
	telemetry.Shutdown(ctx)
}

func (a *app) drainEvents() {
	for {
		select {
		case ev := <-a.sub:
			a.logger.Debug("event", "type", ev.Type, "id", ev.ID, "sprint_id", ev.SprintID, "project_id", ev.ProjectID)
		default:
			return
		}
	}
}

func (a *app) caller() (lifecycle.Caller, error) {
	if a.projectID <= 0 {
		return lifecycle.Caller{}, errors.New("--project is required")
	}
	return lifecycle.Caller{UserID: a.userID, ProjectID: a.projectID}, nil
}

// interactive reports whether both ends of the session are terminals.
func (a *app) interactive() bool {
	in, ok := a.in.(*os.File)
	if !ok || !term.IsTerminal(int(in.Fd())) {
		return false
	}
	out, ok := a.out.(*os.File)
	return ok && term.IsTerminal(int(out.Fd()))
}

func (a *app) termWidth() int {
	if f, ok := a.out.(*os.File); ok {
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			return w
		}
	}
	return 80
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// parseDate accepts YYYY-MM-DD (midnight UTC) or RFC 3339.
func parseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC 3339", s)
	}
	t = t.UTC()
	return &t, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(s, "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func formatPoints(p *float64) string {
	if p == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *p)
}

func describeSprint(s models.Sprint) string {
	return fmt.Sprintf("#%d %s [%s] %s -> %s", s.ID, s.Name, s.Status, formatDate(s.StartDate), formatDate(s.EndDate))
}
