package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/citymind/urbanlink/internal/cli/ui"
	"github.com/citymind/urbanlink/internal/domain/roi"
	"github.com/citymind/urbanlink/internal/report"
	"github.com/citymind/urbanlink/internal/service"
	"github.com/citymind/urbanlink/internal/store"
)

func newReportCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render plain-text reports",
		Long: `Render the same plain-text reports the API serves as downloads.

Reports go to stdout unless --out names a file.`,
	}
	cmd.AddCommand(newReportROICommand(opts))
	cmd.AddCommand(newReportProjectCommand(opts))
	cmd.AddCommand(newReportAuditCommand(opts))
	return cmd
}

func newReportROICommand(opts *rootOptions) *cobra.Command {
	var input, out string

	cmd := &cobra.Command{
		Use:   "roi",
		Short: "Project the return on an investment described in a JSON or YAML file",
		Example: `  citymind report roi --input lighting.yml
  citymind report roi --input lighting.json --out roi.txt`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if input == "" {
				return fmt.Errorf("--input is required")
			}
			in, err := readROIInput(input)
			if err != nil {
				return err
			}
			res, err := roi.Calculate(in)
			if err != nil {
				return err
			}
			return writeReport(cmd, opts, out, func(w io.Writer) error { return report.ROI(w, res) })
		},
	}

	cmd.Flags().StringVarP(&input, "input", "i", "", "Investment description (.json, .yml or .yaml)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file")
	return cmd
}

func newReportProjectCommand(opts *rootOptions) *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "project <project-id>",
		Short: "Render a project status report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid project id %q", args[0])
			}
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			data, err := a.services.Projects.Report(cmd.Context(), service.SystemPrincipal(), id)
			if err != nil {
				return err
			}
			return writeReport(cmd, opts, out, func(w io.Writer) error { return report.ProjectStatus(w, data) })
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Write the report to this file")
	return cmd
}

func newReportAuditCommand(opts *rootOptions) *cobra.Command {
	var (
		out, project, from, to string
		limit                  int
	)

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Export audit log entries, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filters := map[string]string{}
			if project != "" {
				filters["project_id"] = project
			}
			if from != "" {
				filters["from"] = from
			}
			if to != "" {
				filters["to"] = to
			}

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			entries, err := a.services.Audit.List(cmd.Context(), service.SystemPrincipal(), store.ListOptions{
				Filters: filters,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			return writeReport(cmd, opts, out, func(w io.Writer) error { return report.AuditLog(w, entries) })
		},
	}

	f := cmd.Flags()
	f.StringVarP(&out, "out", "o", "", "Write the report to this file")
	f.StringVar(&project, "project", "", "Only entries for this project id")
	f.StringVar(&from, "from", "", "Earliest entry time (RFC 3339)")
	f.StringVar(&to, "to", "", "Latest entry time (RFC 3339, or YYYY-MM-DD for the whole day)")
	f.IntVar(&limit, "limit", store.MaxLimit, "Maximum entries")
	return cmd
}

// readROIInput decodes a JSON file, or a YAML file using the same keys
func readROIInput(path string) (roi.Input, error) {
	var in roi.Input
	data, err := os.ReadFile(path)
	if err != nil {
		return in, err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yml", ".yaml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return in, fmt.Errorf("%s: %w", path, err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return in, fmt.Errorf("%s: %w", path, err)
		}
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		return in, fmt.Errorf("%s: %w", path, err)
	}
	return in, nil
}

// writeReport renders to stdout, or to out when set
func writeReport(cmd *cobra.Command, opts *rootOptions, out string, render func(io.Writer) error) error {
	if out == "" {
		return render(cmd.OutOrStdout())
	}
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	if err := render(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	ui.Success(cmd.ErrOrStderr(), opts.noColor, "Wrote %s", out)
	return nil
}
