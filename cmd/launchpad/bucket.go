package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var bucketCmd = &cobra.Command{
	Use:   "bucket",
	Short: "Inspect the platform bucket and sign object URLs",
}

var bucketInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the configured bucket",
	RunE:  runBucketInfo,
}

var bucketSignUploadCmd = &cobra.Command{
	Use:   "sign-upload <key>",
	Short: "Print a signed upload URL for an object key",
	Args:  cobra.ExactArgs(1),
	RunE:  runBucketSignUpload,
}

var bucketSignDownloadCmd = &cobra.Command{
	Use:   "sign-download <key>",
	Short: "Print a signed download URL for an object key",
	Args:  cobra.ExactArgs(1),
	RunE:  runBucketSignDownload,
}

var bucketExpiry time.Duration

func init() {
	bucketSignUploadCmd.Flags().DurationVar(&bucketExpiry, "expiry", 0, "URL lifetime (default from config, clamped to 1m..168h)")
	bucketSignDownloadCmd.Flags().DurationVar(&bucketExpiry, "expiry", 0, "URL lifetime (default from config, clamped to 1m..168h)")

	bucketCmd.AddCommand(bucketInfoCmd)
	bucketCmd.AddCommand(bucketSignUploadCmd)
	bucketCmd.AddCommand(bucketSignDownloadCmd)
	rootCmd.AddCommand(bucketCmd)
}

func runBucketInfo(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	fmt.Fprintf(os.Stdout, "Bucket: %s://%s\n", svc.Bucket.Protocol(), svc.Bucket.Name())
	if region := svc.Bucket.Region(); region != "" {
		fmt.Fprintf(os.Stdout, "Region: %s\n", region)
	}
	return nil
}

func runBucketSignUpload(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	u, err := svc.Bucket.SignedUploadURL(cmd.Context(), args[0], bucketExpiry)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, u)
	return nil
}

func runBucketSignDownload(cmd *cobra.Command, args []string) error {
	svc, _, log, err := newService()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	u, err := svc.Bucket.SignedDownloadURL(cmd.Context(), args[0], bucketExpiry)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stdout, u)
	return nil
}
