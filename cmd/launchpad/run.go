package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/helix-imaging/launchpad/internal/runs"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Prepare, submit and manage application runs",
}

var runPrepareCmd = &cobra.Command{
	Use:   "prepare",
	Short: "Scan a slide directory and write the metadata CSV",
	Long: "Scan a directory for whole-slide-image files, extract checksums, dimensions and resolution, " +
		"apply mapping rules and write the metadata CSV the upload and submit steps work from.",
	RunE: runRunPrepare,
}

var runUploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload pending slide files from the metadata CSV into the bucket",
	RunE:  runRunUpload,
}

var runSubmitCmd = &cobra.Command{
	Use:   "submit <application-version-id>",
	Short: "Submit an application run from a fully uploaded metadata CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunSubmit,
}

var runExecuteCmd = &cobra.Command{
	Use:   "execute <application-version-id>",
	Short: "Prepare, upload, submit and download results in one go",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunExecute,
}

var runListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your application runs",
	RunE:  runRunList,
}

var runDescribeCmd = &cobra.Command{
	Use:   "describe <run-id>",
	Short: "Show a run and its item results",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunDescribe,
}

var runCancelCmd = &cobra.Command{
	Use:   "cancel <run-id>",
	Short: "Request cancellation of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunCancel,
}

var (
	runSourceDir     string
	runCSVPath       string
	runMappingRules  []string
	runDestDir       string
	runQuPathProject string
	runVersionFilter string
)

func init() {
	runPrepareCmd.Flags().StringVarP(&runSourceDir, "source-dir", "s", "", "Directory to scan for slide files (required)")
	runPrepareCmd.Flags().StringVarP(&runCSVPath, "csv", "m", "metadata.csv", "Path of the metadata CSV to write")
	runPrepareCmd.Flags().StringArrayVar(&runMappingRules, "mapping", nil,
		"Mapping rule <regex>:<key>=<value>,... applied to matching references (repeatable)")
	_ = runPrepareCmd.MarkFlagRequired("source-dir")

	runUploadCmd.Flags().StringVarP(&runCSVPath, "csv", "m", "metadata.csv", "Path of the metadata CSV")

	runSubmitCmd.Flags().StringVarP(&runCSVPath, "csv", "m", "metadata.csv", "Path of the metadata CSV")

	runExecuteCmd.Flags().StringVarP(&runSourceDir, "source-dir", "s", "", "Directory to scan for slide files (required)")
	runExecuteCmd.Flags().StringVarP(&runCSVPath, "csv", "m", "metadata.csv", "Path of the metadata CSV to write")
	runExecuteCmd.Flags().StringArrayVar(&runMappingRules, "mapping", nil,
		"Mapping rule <regex>:<key>=<value>,... applied to matching references (repeatable)")
	runExecuteCmd.Flags().StringVarP(&runDestDir, "destination", "d", "", "Directory to download results into (required)")
	runExecuteCmd.Flags().StringVar(&runQuPathProject, "qupath-project", "", "Assemble a QuPath project at this path")
	_ = runExecuteCmd.MarkFlagRequired("source-dir")
	_ = runExecuteCmd.MarkFlagRequired("destination")

	runListCmd.Flags().StringVar(&runVersionFilter, "application-version", "", "Only list runs of this application version")

	runCmd.AddCommand(runPrepareCmd)
	runCmd.AddCommand(runUploadCmd)
	runCmd.AddCommand(runSubmitCmd)
	runCmd.AddCommand(runExecuteCmd)
	runCmd.AddCommand(runListCmd)
	runCmd.AddCommand(runDescribeCmd)
	runCmd.AddCommand(runCancelCmd)
	applicationCmd.AddCommand(runCmd)
}

func runRunPrepare(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	records, err := svc.Prepare(runSourceDir, runCSVPath, runMappingRules)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Prepared %d record(s) in %s\n", len(records), runCSVPath)
	return nil
}

func runRunUpload(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	records, err := svc.Upload(cmd.Context(), runCSVPath)
	if err != nil {
		return err
	}
	uploaded := 0
	for i := range records {
		if records[i].Uploaded() {
			uploaded++
		}
	}
	fmt.Fprintf(os.Stdout, "Uploaded %d/%d file(s)\n", uploaded, len(records))
	return nil
}

func runRunSubmit(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	run, err := svc.Submit(cmd.Context(), args[0], runCSVPath)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Submitted run %s (%s)\n", run.ApplicationRunID, run.Status)
	return nil
}

func runRunExecute(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts := runs.DownloadOptions{
		DestinationDir:   runDestDir,
		CreateRunSubdir:  true,
		CreateItemSubdir: true,
		QuPathProject:    runQuPathProject,
		OnProgress:       printDownloadProgress(),
	}
	run, root, err := svc.Execute(cmd.Context(), args[0], runSourceDir, runCSVPath, runMappingRules, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Run %s finished: %s\n", run.ApplicationRunID, run.Status)
	fmt.Fprintf(os.Stdout, "Results: %s\n", root)
	return nil
}

func runRunList(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	list, err := svc.Client.Runs(cmd.Context(), runVersionFilter)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		fmt.Fprintln(os.Stdout, "No runs found.")
		return nil
	}
	for _, r := range list {
		fmt.Fprintf(os.Stdout, "%s\t%s\t%s\t%s\n",
			r.ApplicationRunID, r.ApplicationVersionID, r.Status,
			r.TriggeredAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runRunDescribe(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	run, err := svc.Client.Run(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	items, err := svc.Client.RunResults(cmd.Context(), run.ApplicationRunID)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Run: %s\n", run.ApplicationRunID)
	fmt.Fprintf(os.Stdout, "Application version: %s\n", run.ApplicationVersionID)
	fmt.Fprintf(os.Stdout, "Status: %s\n", run.Status)
	fmt.Fprintf(os.Stdout, "Items:\n")
	for _, item := range items {
		line := fmt.Sprintf("  %s\t%s", item.Reference, item.Status)
		if item.Error != "" {
			line += "\t" + item.Error
		}
		fmt.Fprintln(os.Stdout, line)
		for _, artifact := range item.OutputArtifacts {
			fmt.Fprintf(os.Stdout, "    %s (%s)\n", artifact.Name, artifact.MimeType)
		}
	}
	return nil
}

func runRunCancel(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := svc.Client.CancelRun(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "Requested cancellation of run %s\n", args[0])
	return nil
}

// printDownloadProgress returns a callback printing state transitions and
// completed artifacts.
func printDownloadProgress() runs.ProgressCallback {
	var lastState runs.DownloadState
	var lastArtifact string
	return func(p runs.DownloadProgress) {
		if p.State != lastState {
			lastState = p.State
			fmt.Fprintf(os.Stdout, "[%s]\n", p.State)
		}
		if p.State == runs.StateDownloading && p.ArtifactPath != lastArtifact {
			lastArtifact = p.ArtifactPath
			fmt.Fprintf(os.Stdout, "  %d/%d %s\n",
				p.TotalArtifactIndex, p.TotalArtifactCount, p.ArtifactPath)
		}
	}
}
