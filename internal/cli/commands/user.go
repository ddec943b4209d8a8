package commands

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"

	"github.com/citymind/urbanlink/internal/cli/ui"
	"github.com/citymind/urbanlink/internal/model"
	"github.com/citymind/urbanlink/internal/service"
)

var roleNames = []string{
	string(model.RoleMunicipality),
	string(model.RoleDeveloper),
	string(model.RoleIntegrator),
	string(model.RoleAdmin),
}

func newUserCommand(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage platform accounts",
	}
	cmd.AddCommand(newUserCreateCommand(opts))
	return cmd
}

func newUserCreateCommand(opts *rootOptions) *cobra.Command {
	var (
		in      service.RegisterInput
		role    string
		noInput bool
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an account of any role, including admin",
		Long: `Create a profile directly in the database. Unlike self-registration
this may create admin accounts.

Missing required values are prompted for unless --no-input is set.`,
		Example: `  citymind user create --email ops@city.gov --role admin --full-name "Ops Team"
  citymind user create --role municipality --city Springfield --population 120000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !noInput {
				if err := promptProfile(&in, &role); err != nil {
					return err
				}
			}
			r, err := parseRole(role)
			if err != nil {
				return err
			}
			in.Role = r

			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context(), cfg, logger, appOptions{})
			if err != nil {
				return err
			}
			defer a.Close(cmd.Context())

			profile, err := a.services.Auth.CreateProfile(cmd.Context(), in)
			if err != nil {
				ui.Fail(cmd.ErrOrStderr(), opts.noColor, "could not create user", err, fieldHints(err)...)
				return err
			}

			out := cmd.OutOrStdout()
			ui.Success(out, opts.noColor, "Created %s account", profile.Role)
			kv := ui.NewKeyValues(out, opts.noColor)
			kv.Add("ID", profile.ID)
			kv.Add("Email", profile.Email)
			kv.Add("Name", profile.FullName)
			kv.Render()
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.Email, "email", "", "Login email")
	f.StringVar(&in.Password, "password", "", "Initial password")
	f.StringVar(&in.FullName, "full-name", "", "Display name")
	f.StringVar(&in.Organization, "organization", "", "Organization")
	f.StringVar(&role, "role", "", "One of "+strings.Join(roleNames, ", "))
	f.StringVar(&in.City, "city", "", "City")
	f.StringVar(&in.Country, "country", "", "Country")
	f.Int64Var(&in.Population, "population", 0, "Population, for municipalities")
	f.BoolVar(&noInput, "no-input", false, "Fail instead of prompting for missing values")
	return cmd
}

// parseRole accepts a role name and suggests the closest one on a typo
func parseRole(raw string) (model.Role, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", fmt.Errorf("--role is required (one of %s)", strings.Join(roleNames, ", "))
	}
	for _, r := range roleNames {
		if raw == r {
			return model.Role(r), nil
		}
	}
	if s := ui.Suggest(raw, roleNames, 1); len(s) > 0 {
		return "", fmt.Errorf("unknown role %q, did you mean %q?", raw, s[0])
	}
	return "", fmt.Errorf("unknown role %q (one of %s)", raw, strings.Join(roleNames, ", "))
}

func promptProfile(in *service.RegisterInput, role *string) error {
	if in.Email == "" {
		if err := survey.AskOne(&survey.Input{Message: "Email:"}, &in.Email, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}
	if in.Password == "" {
		if err := survey.AskOne(&survey.Password{Message: "Password:"}, &in.Password, survey.WithValidator(survey.MinLength(8))); err != nil {
			return err
		}
	}
	if in.FullName == "" {
		if err := survey.AskOne(&survey.Input{Message: "Full name:"}, &in.FullName, survey.WithValidator(survey.Required)); err != nil {
			return err
		}
	}
	if *role == "" {
		if err := survey.AskOne(&survey.Select{Message: "Role:", Options: roleNames}, role); err != nil {
			return err
		}
	}
	if *role == string(model.RoleMunicipality) && in.Population == 0 {
		var pop string
		if err := survey.AskOne(&survey.Input{Message: "Population:"}, &pop); err != nil {
			return err
		}
		if _, err := fmt.Sscan(pop, &in.Population); err != nil && pop != "" {
			return fmt.Errorf("population must be a whole number: %w", err)
		}
	}
	return nil
}

// fieldHints lists validation problems one per line
func fieldHints(err error) []string {
	var se *service.Error
	if !errors.As(err, &se) || len(se.Fields) == 0 {
		return nil
	}
	var hints []string
	for field, msgs := range se.Fields {
		for _, m := range msgs {
			hints = append(hints, field+" "+m)
		}
	}
	sort.Strings(hints)
	return hints
}
