package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/Skryldev/people/config"
	"github.com/Skryldev/people/db"
	"github.com/Skryldev/people/internal/errors"
	logs "github.com/Skryldev/people/internal/log"
)

var errUsage = errors.New("usage")

func main() {
	configPath := flag.String("config", "", "config file (default: people.yaml, config/people.yaml or ~/.people/people.yaml)")
	flag.Usage = usage
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("load config: %v", err)
	}
	logger, err := logs.New(cfg.Log, os.Stderr)
	if err != nil {
		fatalf("logger: %v", err)
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err = run(ctx, cfg.SQL, logger, args, os.Stdin, os.Stdout)
	stop()
	if errors.Is(err, errUsage) {
		usage()
		os.Exit(1)
	}
	if err != nil {
		fatalf("%v", err)
	}
}

// run executes one migration command. The migrator is closed before run
// returns, whatever the outcome.
func run(ctx context.Context, cfg config.Database, logger *slog.Logger, args []string, stdin io.Reader, stdout io.Writer) error {
	m, err := db.NewMigrator(ctx, cfg, logger)
	if err != nil {
		return errors.Wrap(err, "migration init failed")
	}
	defer m.Close()

	switch command := args[0]; command {
	case "up":
		if err := m.Up(ctx); err != nil {
			return errors.Wrap(err, "up failed")
		}
		logger.Info("migrations: up completed")

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n < 1 {
				return errors.Errorf("down: invalid steps argument %q", args[1])
			}
			steps = n
		}
		if err := m.Down(ctx, steps); err != nil {
			return errors.Wrap(err, "down failed")
		}
		logger.Info("migrations: down completed", "steps", steps)

	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			return errors.Wrap(err, "version failed")
		}
		fmt.Fprintf(stdout, "version: %d  dirty: %v\n", v, dirty)

	case "force":
		if len(args) < 2 {
			return errors.New("force: version argument required")
		}
		v, err := strconv.Atoi(args[1])
		if err != nil {
			return errors.Errorf("force: invalid version %q", args[1])
		}
		if err := m.Force(v); err != nil {
			return errors.Wrap(err, "force failed")
		}
		logger.Info("migrations: forced", "version", v)

	case "drop":
		fmt.Fprintln(os.Stderr, "WARNING: drop will destroy the person and account tables. Type 'yes' to confirm:")
		confirm, _ := bufio.NewReader(stdin).ReadString('\n')
		if strings.TrimSpace(confirm) != "yes" {
			fmt.Fprintln(stdout, "aborted")
			return nil
		}
		if err := m.Drop(); err != nil {
			return errors.Wrap(err, "drop failed")
		}
		logger.Info("migrations: all tables dropped")

	default:
		return errUsage
	}
	return nil
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: migrate [-config FILE] <command> [args]

Commands:
  up           Apply all pending migrations
  down [N]     Rollback N migrations (default: 1)
  version      Print current migration version
  force <V>    Force set migration version (bypass dirty state)
  drop         Drop all tables (dev only)

The database is the sql section of the people config; PEOPLE_SQL_* variables
override it.`)
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
