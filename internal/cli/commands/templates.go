package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/citymind/urbanlink/internal/cli/ui"
	"github.com/citymind/urbanlink/internal/domain/workflow"
	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/store"
)

// templateFile is the on-disk layout read by templates import:
//
//	templates:
//	  - name: Smart lighting rollout
//	    category: energy
//	    public: true
//	    phases: |
//	      Survey [10]: audit poles; map circuits
//	      Install [30]: mount nodes
//	    milestones: |
//	      Pilot live @ 20
type templateFile struct {
	Templates []model.WorkflowTemplate `yaml:"templates"`
}

func newTemplatesCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "templates",
		Aliases: []string{"template"},
		Short:   "Manage workflow templates",
	}
	cmd.AddCommand(newTemplatesCheckCommand(opts))
	cmd.AddCommand(newTemplatesImportCommand(opts))
	return cmd
}

func newTemplatesCheckCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Parse a template file and show each plan without touching the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			templates, err := readTemplateFile(args[0])
			if err != nil {
				return err
			}
			return summarizeTemplates(cmd.OutOrStdout(), templates, opts.noColor)
		},
	}
}

func newTemplatesImportCommand(opts *rootOptions) *cobra.Command {
	var creator string

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Store every template in a YAML file",
		Long: `Read workflow templates from a YAML file and store them on behalf of
--creator, given as a profile id or email. All templates are checked
first; nothing is stored if any one is invalid.`,
		Example: `  citymind templates import templates.yml --creator ops@city.gov`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if creator == "" {
				return fmt.Errorf("--creator is required")
			}
			templates, err := readTemplateFile(args[0])
			if err != nil {
				return err
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

			owner, err := resolveProfile(cmd.Context(), a.store, creator)
			if err != nil {
				return err
			}
			n, err := a.services.Workflows.Import(cmd.Context(), owner.ID, templates)
			if err != nil {
				ui.Fail(cmd.ErrOrStderr(), opts.noColor, "import failed", err, fieldHints(err)...)
				return err
			}
			ui.Success(cmd.OutOrStdout(), opts.noColor, "Imported %d template(s) for %s", n, owner.Email)
			return nil
		},
	}

	cmd.Flags().StringVar(&creator, "creator", "", "Owning profile id or email")
	return cmd
}

func readTemplateFile(path string) ([]model.WorkflowTemplate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	templates, err := decodeTemplates(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return templates, nil
}

func decodeTemplates(r io.Reader) ([]model.WorkflowTemplate, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var file templateFile
	if err := dec.Decode(&file); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("no templates found")
		}
		return nil, err
	}
	if len(file.Templates) == 0 {
		return nil, fmt.Errorf("no templates found")
	}
	return file.Templates, nil
}

// summarizeTemplates parses each plan and prints one row per template. It
// returns an error naming the first template that does not parse.
func summarizeTemplates(w io.Writer, templates []model.WorkflowTemplate, noColor bool) error {
	table := ui.NewTable(w, noColor, "NAME", "CATEGORY", "PHASES", "TASKS", "MILESTONES", "DAYS")
	var bad []string
	for i := range templates {
		t := &templates[i]
		if err := t.Validate(); err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", label(t, i), err))
			continue
		}
		plan, err := workflow.Parse(t.Phases, t.Milestones)
		if err != nil {
			bad = append(bad, fmt.Sprintf("%s: %v", label(t, i), err))
			continue
		}
		s := plan.Schedule(time.Time{})
		table.AddRow(t.Name, string(t.Category),
			strconv.Itoa(len(plan.Phases)),
			strconv.Itoa(len(s.Tasks)),
			strconv.Itoa(len(s.Milestones)),
			strconv.Itoa(s.TotalDays))
	}
	if table.Len() > 0 {
		table.Render()
	}
	if len(bad) > 0 {
		ui.Fail(w, noColor, fmt.Sprintf("%d invalid template(s)", len(bad)), nil, bad...)
		return fmt.Errorf("%d of %d templates are invalid", len(bad), len(templates))
	}
	ui.Success(w, noColor, "%d template(s) ok", len(templates))
	return nil
}

func label(t *model.WorkflowTemplate, i int) string {
	if t.Name != "" {
		return t.Name
	}
	return fmt.Sprintf("template #%d", i+1)
}

// resolveProfile finds a profile by id or, failing that, by email
func resolveProfile(ctx context.Context, st *store.Store, ref string) (*model.Profile, error) {
	if id, err := uuid.Parse(ref); err == nil {
		p, err := st.GetProfile(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", id, err)
		}
		return p, nil
	}
	p, err := st.GetProfileByEmail(ctx, model.NormalizeEmail(strings.TrimSpace(ref)))
	if err != nil {
		return nil, fmt.Errorf("profile %s: %w", ref, err)
	}
	return p, nil
}
