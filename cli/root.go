// Package cli is the people command line. Each invocation logs in, selects a
// storage kind and runs one controller operation, or a whole shell session
// of them.
package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/controller"
	"github.com/Skryldev/people/dao"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	logs "github.com/Skryldev/people/internal/log"
	"github.com/Skryldev/people/metrics"
	"github.com/Skryldev/people/repo"
)

// Exit codes.
const (
	ExitOK     = 0
	ExitDomain = 1
	ExitFatal  = 2
)

type app struct {
	stdin          io.Reader
	stdout, stderr io.Writer

	configPath string
	username   string
	password   string
	storage    string

	// started flips once flags parsed and a command began; errors before
	// that are usage errors.
	started bool

	cfg       *config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	hooks     []db.Hook

	credentials *db.DB
	ctrl        *controller.Controller
	session     *controller.Session
}

// Execute runs the command line against the process arguments and returns
// the exit code.
func Execute() int {
	return Run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
}

// Run executes args and returns the exit code: 1 for recoverable errors
// (bad input, wrong credentials, missing person), 2 for infrastructure
// failures. stdin feeds the shell command.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	root := a.rootCmd()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(ctx); err == nil {
		err = closeErr
	}

	switch {
	case err == nil:
		return ExitOK
	case !a.started || isUsage(err) || controller.IsDomain(err):
		fmt.Fprintf(stderr, "warning: %v\n", err)
		return ExitDomain
	default:
		a.log().ErrorContext(ctx, "command failed", slog.Any("error", err))
		return ExitFatal
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "people",
		Short:         "Manage person records over interchangeable storage backends",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a.started = true
			return a.setup()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: people.yaml, config/people.yaml or ~/.people/people.yaml)")
	flags.StringVarP(&a.username, "user", "u", "", "account name")
	flags.StringVarP(&a.password, "password", "p", "", "account password")
	flags.StringVarP(&a.storage, "storage", "s", "", "storage kind: list, map, file, serial, sql, orm or redis (default from config)")

	root.AddCommand(
		a.insertCmd(),
		a.readCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.listCmd(),
		a.deleteAllCmd(),
		a.countCmd(),
		a.actionsCmd(),
		a.migrateCmd(),
		a.hashPasswordCmd(),
		a.shellCmd(),
	)
	return root
}

// setup loads the environment, the config, the logger and the metrics.
func (a *app) setup() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrap(err, "load .env")
	}

	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	logger, err := logs.New(cfg.Log, a.stderr)
	if err != nil {
		return err
	}
	if a.storage == "" {
		a.storage = cfg.Storage
	}

	a.cfg = cfg
	a.logger = logger
	a.collector = metrics.New()
	a.hooks = []db.Hook{
		db.NewLogHook(db.LogHookConfig{
			Logger:             logger,
			SlowQueryThreshold: cfg.SQL.SlowQueryThreshold,
			LogArgs:            cfg.SQL.LogArgs,
		}),
		db.NewMetricsHook(a.collector),
	}
	return nil
}

// controller bootstraps the credential schema and wires the controller.
func (a *app) controller(ctx context.Context) (*controller.Controller, error) {
	if err := db.Bootstrap(ctx, a.cfg.SQL, a.logger); err != nil {
		return nil, err
	}
	credentials, err := db.Connect(ctx, a.cfg.SQL, a.hooks...)
	if err != nil {
		return nil, errors.Wrap(err, "connect credentials database")
	}
	a.credentials = credentials
	return controller.New(repo.NewCredentialRepo(credentials), a.openStore, a.logger), nil
}

func (a *app) openStore(ctx context.Context, kind dao.Kind) (dao.Store, error) {
	s, err := dao.Open(ctx, kind, dao.Options{
		DataDir: a.cfg.Data.Dir,
		SQL:     a.cfg.SQL,
		ORM:     a.cfg.ORM,
		Redis:   a.cfg.Redis,
		Logger:  a.logger,
		Hooks:   a.hooks,
	})
	if err != nil {
		return nil, err
	}
	return dao.Instrument(s, kind, a.collector, a.logger), nil
}

// login authenticates the caller without selecting a store.
func (a *app) login(ctx context.Context) (*controller.Controller, *controller.Session, error) {
	ctrl, err := a.controller(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err := ctrl.Login(ctx, a.username, a.password)
	if err != nil {
		return nil, nil, err
	}
	return ctrl, s, nil
}

// open authenticates the caller and binds the selected store. Later calls in
// the same run reuse the session.
func (a *app) open(ctx context.Context) (*controller.Controller, *controller.Session, error) {
	if a.session != nil {
		return a.ctrl, a.session, nil
	}
	ctrl, s, err := a.login(ctx)
	if err != nil {
		return nil, nil, err
	}
	s, err = ctrl.SelectStorage(ctx, s, a.storage)
	if err != nil {
		return nil, nil, err
	}
	a.ctrl, a.session = ctrl, s
	return ctrl, s, nil
}

// close releases the store and the credential pool, then pushes metrics.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.session != nil {
		errs = append(errs, a.session.Close())
	}
	if a.credentials != nil {
		errs = append(errs, a.credentials.Close())
	}
	if a.cfg != nil && a.cfg.Metrics.PushURL != "" {
		if err := a.collector.Push(ctx, a.cfg.Metrics.PushURL, a.cfg.Metrics.Job); err != nil {
			a.log().WarnContext(ctx, "metrics push failed", slog.Any("error", err))
		}
	}
	return errors.Join(errs...)
}

func (a *app) log() *slog.Logger {
	if a.logger != nil {
		return a.logger
	}
	return slog.New(slog.NewTextHandler(a.stderr, nil))
}
