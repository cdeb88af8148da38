package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"microfe/services/bundler"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "microctl",
		Short:         "Utility for packaging and publishing UI components",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newComponentCommand())
	cmd.AddCommand(newKeysCommand())
	return cmd
}

func newComponentCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "component",
		Short: "Component bundle operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newComponentPackCommand())
	cmd.AddCommand(newComponentPushCommand())
	return cmd
}

func newComponentPackCommand() *cobra.Command {
	var (
		sourceDir string
		name      string
		output    string
	)

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Create a signed component bundle from a source directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signer, err := bundler.NewSignerFromEnv()
			if err != nil {
				return err
			}
			_, err = bundler.Pack(ctx, bundler.PackConfig{
				SourceDir: sourceDir,
				Name:      name,
				Output:    output,
				Signer:    signer,
				Stdout:    os.Stdout,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source-dir", "", "Directory containing the component source")
	cmd.Flags().StringVar(&name, "name", "", "Display name for the component (defaults to the directory name)")
	cmd.Flags().StringVar(&output, "output", "", "Destination bundle file (tar.zst)")
	_ = cmd.MarkFlagRequired("source-dir")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newComponentPushCommand() *cobra.Command {
	var (
		bundleFile string
		apiBaseURL string
		name       string
	)

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Verify a signed bundle and publish it to the registry",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			signer, err := bundler.NewSignerFromEnv()
			if err != nil {
				return err
			}
			_, err = bundler.Push(ctx, bundler.PushConfig{
				BundlePath: bundleFile,
				APIBaseURL: apiBaseURL,
				Name:       name,
				Signer:     signer,
				Stdout:     os.Stdout,
			})
			return err
		},
	}

	cmd.Flags().StringVar(&bundleFile, "file", "", "Path to the bundle tar.zst")
	cmd.Flags().StringVar(&apiBaseURL, "api", "", "Base URL of the registry API (e.g. http://localhost:8080)")
	cmd.Flags().StringVar(&name, "name", "", "Override the component name from the manifest")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("api")
	return cmd
}

func newKeysCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Signing key operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newKeysGenerateCommand())
	return cmd
}

func newKeysGenerateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a new bundle signing key pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, public, err := bundler.GenerateKeyMaterial()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "AGE_SECRET_KEY=%s\nAGE_PUBLIC_KEY=%s\n", secret, public)
			return nil
		},
	}
	return cmd
}
