package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Skryldev/people/controller"
	"github.com/Skryldev/people/internal/errors"
)

func (a *app) shellCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Run person commands read from stdin in one session",
		Long: `Log in and select the storage once, then run one person command per
input line: insert, read, update, delete, list, delete-all or count, with the
same flags as the standalone commands. The list and map storages keep their
contents until the session ends. Blank lines and lines starting with # are
skipped; exit or quit ends the session.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if _, _, err := a.open(ctx); err != nil {
				return err
			}

			scanner := bufio.NewScanner(cmd.InOrStdin())
			for scanner.Scan() {
				args := strings.Fields(scanner.Text())
				if len(args) == 0 || strings.HasPrefix(args[0], "#") {
					continue
				}
				if args[0] == "exit" || args[0] == "quit" {
					return nil
				}
				if err := a.shellLine(ctx, args); err != nil {
					return err
				}
			}
			return errors.Wrap(scanner.Err(), "read commands")
		},
	}
}

// shellLine runs one input line against the open session. Domain and usage
// errors are reported and swallowed; anything else ends the session.
func (a *app) shellLine(ctx context.Context, args []string) error {
	started := false
	line := &cobra.Command{
		Use:           "people",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			started = true
		},
	}
	line.AddCommand(
		a.insertCmd(),
		a.readCmd(),
		a.updateCmd(),
		a.deleteCmd(),
		a.listCmd(),
		a.deleteAllCmd(),
		a.countCmd(),
	)
	line.SetArgs(args)
	line.SetOut(a.stdout)
	line.SetErr(a.stderr)

	err := line.ExecuteContext(ctx)
	switch {
	case err == nil:
		return nil
	case !started || isUsage(err) || controller.IsDomain(err):
		fmt.Fprintf(a.stderr, "warning: %v\n", err)
		return nil
	default:
		return err
	}
}
