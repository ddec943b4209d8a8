package commands

import (
	"database/sql"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/citymind/urbanlink/internal/cli/ui"
	"github.com/citymind/urbanlink/internal/store"
	"github.com/citymind/urbanlink/internal/store/migrate"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration commands",
		Long: `Apply and inspect the schema migrations compiled into this binary.

Available subcommands:
  up      - Apply all pending migrations
  down    - Roll back the most recent migrations
  status  - Show applied and pending migrations`,
	}

	cmd.AddCommand(newMigrateUpCommand(opts))
	cmd.AddCommand(newMigrateDownCommand(opts))
	cmd.AddCommand(newMigrateStatusCommand(opts))
	return cmd
}

// withRunner opens the database, hands fn a runner plus the embedded
// migrations, and closes the database afterwards
func withRunner(cmd *cobra.Command, opts *rootOptions, fn func(*migrate.Runner, []*migrate.Migration) error) error {
	cfg, logger, err := opts.load()
	if err != nil {
		return err
	}
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	all, err := migrate.Embedded()
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	var db *sql.DB
	err = ui.Spin(cmd.ErrOrStderr(), "Connecting to database", opts.noColor, func() error {
		db, err = store.Open(cmd.Context(), store.DefaultPoolConfig(cfg.Database.URL))
		return err
	})
	if err != nil {
		return err
	}
	defer db.Close()

	return fn(migrate.NewRunner(db, logger), all)
}

func newMigrateUpCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, opts, func(r *migrate.Runner, all []*migrate.Migration) error {
				out := cmd.OutOrStdout()
				n, err := r.Up(cmd.Context(), all)
				if err != nil {
					ui.Fail(out, opts.noColor, "migration failed", err,
						fmt.Sprintf("%d migration(s) applied before the failure", n),
						"Inspect state: citymind migrate status")
					return err
				}
				if n == 0 {
					ui.Success(out, opts.noColor, "Database is up to date")
					return nil
				}
				ui.Success(out, opts.noColor, "Applied %d migration(s)", n)
				return nil
			})
		},
	}
}

func newMigrateDownCommand(opts *rootOptions) *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1, got %d", steps)
			}
			return withRunner(cmd, opts, func(r *migrate.Runner, _ []*migrate.Migration) error {
				out := cmd.OutOrStdout()
				for i := 0; i < steps; i++ {
					m, err := r.Down(cmd.Context())
					if err != nil {
						ui.Fail(out, opts.noColor, "rollback failed", err)
						return err
					}
					ui.Success(out, opts.noColor, "Rolled back %d_%s", m.Version, m.Name)
				}
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&steps, "steps", "n", 1, "Number of migrations to roll back")
	return cmd
}

func newMigrateStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, opts, func(r *migrate.Runner, all []*migrate.Migration) error {
				status, err := r.Status(cmd.Context(), all)
				if err != nil {
					return err
				}
				renderStatus(cmd.OutOrStdout(), status, opts.noColor)
				return nil
			})
		},
	}
}

func renderStatus(w io.Writer, status *migrate.Status, noColor bool) {
	ui.Header(w, "Migrations", noColor)
	table := ui.NewTable(w, noColor, "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, m := range status.Applied {
		table.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "applied", m.AppliedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	for _, m := range status.Pending {
		table.AddRow(strconv.FormatInt(m.Version, 10), m.Name, "pending")
	}
	table.Render()
	fmt.Fprintln(w)

	kv := ui.NewKeyValues(w, noColor)
	kv.Add("Total", status.Total)
	kv.Add("Applied", len(status.Applied))
	kv.Add("Pending", len(status.Pending))
	kv.Render()
}
