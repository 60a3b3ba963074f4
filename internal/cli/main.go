package cli

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func Main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	_ = godotenv.Load() // best-effort: load .env if present

	root := &cobra.Command{
		Use:          "promptcut",
		Short:        "Cut the parts of a video that match a plain-language instruction",
		SilenceUsage: true,
	}
	root.SetOut(os.Stdout)
	root.SetErr(os.Stderr)
	root.SilenceErrors = true

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Serve POST /clip over HTTP",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
	serve.Flags().String("addr", ":"+getenvDefault("PORT", "8080"), "Listen address")

	clip := &cobra.Command{
		Use:   "clip <locator>",
		Short: "Render one clip from a URL or local file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runClip(cmd, args[0])
		},
	}
	clip.Flags().String("prompt", "", "Instruction describing the parts to keep")
	clip.Flags().String("out", "", "Output file (default: out/<name>-<time>-<id>.mp4)")
	_ = clip.MarkFlagRequired("prompt")

	root.AddCommand(serve, clip)
	return root
}
