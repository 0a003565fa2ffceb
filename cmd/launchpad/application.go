package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helix-imaging/launchpad/internal/platform"
)

var applicationCmd = &cobra.Command{
	Use:   "application",
	Short: "Inspect the applications available to your organization",
}

var applicationListCmd = &cobra.Command{
	Use:   "list",
	Short: "List available applications",
	RunE:  runApplicationList,
}

var applicationDescribeCmd = &cobra.Command{
	Use:   "describe <application-id>",
	Short: "Show an application and its published versions",
	Args:  cobra.ExactArgs(1),
	RunE:  runApplicationDescribe,
}

var applicationDumpSchemataCmd = &cobra.Command{
	Use:   "dump-schemata <application-version-id>",
	Short: "Dump the artifact metadata schemas of an application version",
	Long: "Print the input and output artifact schemas of an application version as JSON, " +
		"or write one schema file per artifact plus an index with --out.",
	Args: cobra.ExactArgs(1),
	RunE: runApplicationDumpSchemata,
}

var schemataOutDir string

func init() {
	applicationDumpSchemataCmd.Flags().StringVarP(&schemataOutDir, "out", "o", "", "Directory to write schema files into")

	applicationCmd.AddCommand(applicationListCmd)
	applicationCmd.AddCommand(applicationDescribeCmd)
	applicationCmd.AddCommand(applicationDumpSchemataCmd)
	rootCmd.AddCommand(applicationCmd)
}

func runApplicationList(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	apps, err := svc.Client.Applications(cmd.Context())
	if err != nil {
		return err
	}
	if len(apps) == 0 {
		fmt.Fprintln(os.Stdout, "No applications available.")
		return nil
	}
	for _, app := range apps {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\n",
			app.ApplicationID, app.Name, strings.Join(app.RegulatoryClasses, ","))
	}
	return nil
}

func runApplicationDescribe(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := svc.Client.Application(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	versions, err := svc.Client.Versions(cmd.Context(), app.ApplicationID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Application: %s (%s)\n", app.Name, app.ApplicationID)
	if app.Description != "" {
		fmt.Fprintf(os.Stdout, "Description: %s\n", app.Description)
	}
	if len(app.RegulatoryClasses) > 0 {
		fmt.Fprintf(os.Stdout, "Regulatory classes: %s\n", strings.Join(app.RegulatoryClasses, ", "))
	}
	fmt.Fprintf(os.Stdout, "Versions:\n")
	for _, v := range versions {
		fmt.Fprintf(os.Stdout, "  %s\n", v.ApplicationVersionID)
	}
	return nil
}

func runApplicationDumpSchemata(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	version, err := svc.Client.ResolveVersion(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	if schemataOutDir == "" {
		schemata := map[string][]platform.ArtifactDeclaration{
			"input_artifacts":  version.InputArtifacts,
			"output_artifacts": version.OutputArtifacts,
		}
		out, err := json.MarshalIndent(schemata, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode schemata: %w", err)
		}
		fmt.Fprintln(os.Stdout, string(out))
		return nil
	}
	return dumpSchemataFiles(version, schemataOutDir)
}

// dumpSchemataFiles writes one schema file per artifact and a markdown index
// under dir.
func dumpSchemataFiles(version *platform.ApplicationVersion, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var index strings.Builder
	fmt.Fprintf(&index, "# Schemata of %s\n\n", version.ApplicationVersionID)

	write := func(kind string, decls []platform.ArtifactDeclaration) error {
		fmt.Fprintf(&index, "## %s artifacts\n\n", kind)
		for _, decl := range decls {
			name := fmt.Sprintf("%s_%s.schema.json", kind, decl.Name)
			out, err := json.MarshalIndent(decl.MetadataSchema, "", "  ")
			if err != nil {
				return fmt.Errorf("failed to encode schema of %s: %w", decl.Name, err)
			}
			if err := os.WriteFile(filepath.Join(dir, name), out, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", name, err)
			}
			fmt.Fprintf(&index, "- [%s](%s) (%s)\n", decl.Name, name, decl.MimeType)
		}
		index.WriteString("\n")
		return nil
	}
	if err := write("input", version.InputArtifacts); err != nil {
		return err
	}
	if err := write("output", version.OutputArtifacts); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, "index.md"), []byte(index.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write index: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Wrote schemata to %s\n", dir)
	return nil
}
