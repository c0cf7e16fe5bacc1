package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/KBesada24/test-suite-manager/models"
	"github.com/KBesada24/test-suite-manager/services"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// treeDocument is the YAML layout used by import and export
type treeDocument struct {
	Tenant     string             `yaml:"tenant"`
	ExportedAt time.Time          `yaml:"exported_at,omitempty"`
	Suites     []models.TestSuite `yaml:"suites"`
}

func newImportCmd(opts *cliOptions) *cobra.Command {
	var tenantID, file string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replace a tenant's suite tree with the contents of a YAML file",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(file)
			if err != nil {
				return fmt.Errorf("reading %s: %w", file, err)
			}
			var doc treeDocument
			if err := yaml.Unmarshal(data, &doc); err != nil {
				return fmt.Errorf("parsing %s: %w", file, err)
			}

			ctx := cmd.Context()
			repo, err := opts.openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			if _, err := services.NewTenantService(repo).GetTenant(ctx, tenantID); err != nil {
				return fmt.Errorf("tenant %s: %w", tenantID, err)
			}

			snap, err := services.NewSuiteService(opts.cfg, repo, nil).ReplaceTestSuites(ctx, tenantID, doc.Suites)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d suites into tenant %s (version %d)\n",
				len(snap.Suites), tenantID, snap.Version)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "YAML file to import")
	_ = cmd.MarkFlagRequired("tenant")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newExportCmd(opts *cliOptions) *cobra.Command {
	var tenantID, file string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write a tenant's suite tree as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			repo, err := opts.openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			suites, _, err := repo.LoadTree(ctx, tenantID)
			if err != nil {
				return err
			}

			data, err := yaml.Marshal(treeDocument{
				Tenant:     tenantID,
				ExportedAt: time.Now().UTC().Truncate(time.Second),
				Suites:     suites,
			})
			if err != nil {
				return fmt.Errorf("encoding tree: %w", err)
			}

			if file == "" {
				_, err = cmd.OutOrStdout().Write(data)
				return err
			}
			if err := os.WriteFile(file, data, 0o644); err != nil {
				return fmt.Errorf("writing %s: %w", file, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d suites to %s\n", len(suites), file)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Output file (default stdout)")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

func newTreeCmd(opts *cliOptions) *cobra.Command {
	var (
		tenantID string
		noColor  bool
	)

	cmd := &cobra.Command{
		Use:   "tree",
		Short: "Print a tenant's suite tree with test case statuses",
		RunE: func(cmd *cobra.Command, args []string) error {
			if noColor {
				color.NoColor = true
			}

			ctx := cmd.Context()
			repo, err := opts.openRepository(ctx)
			if err != nil {
				return err
			}
			defer repo.Close()

			suites, _, err := repo.LoadTree(ctx, tenantID)
			if err != nil {
				return err
			}
			printTree(cmd.OutOrStdout(), suites)
			return nil
		},
	}

	cmd.Flags().StringVar(&tenantID, "tenant", "", "Tenant id")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	_ = cmd.MarkFlagRequired("tenant")
	return cmd
}

var (
	suiteColor = color.New(color.FgCyan, color.Bold)
	childColor = color.New(color.FgBlue)
	faintColor = color.New(color.Faint)

	statusColors = map[models.TestStatus]*color.Color{
		models.StatusCompleted:  color.New(color.FgGreen),
		models.StatusFailed:     color.New(color.FgRed),
		models.StatusPending:    color.New(color.FgYellow),
		models.StatusInProgress: color.New(color.FgCyan),
		models.StatusSkipped:    color.New(color.Faint),
		models.StatusNotStarted: color.New(color.Faint),
	}
)

func printTree(w io.Writer, suites []models.TestSuite) {
	if len(suites) == 0 {
		fmt.Fprintln(w, faintColor.Sprint("(no test suites)"))
		return
	}

	for _, suite := range suites {
		fmt.Fprintf(w, "%s %s\n", suiteColor.Sprintf("● %s", suite.Name), faintColor.Sprintf("#%d", suite.ID))
		printCases(w, "   ", suite.TestCases)
		for _, child := range suite.Children {
			fmt.Fprintf(w, "   %s %s\n", childColor.Sprintf("▸ %s", child.Name), faintColor.Sprintf("#%d", child.ID))
			printCases(w, "      ", child.TestCases)
		}
	}
}

func printCases(w io.Writer, indent string, cases []models.TestCase) {
	for _, tc := range cases {
		status := string(tc.Status)
		if c, ok := statusColors[tc.Status]; ok {
			status = c.Sprint(status)
		}
		fmt.Fprintf(w, "%s#%d %s [%s] %s\n", indent, tc.ID, tc.Name, tc.Priority, status)
	}
}
