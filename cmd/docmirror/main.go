package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/paddocklabs/docmirror/internal/pipeline"
	"github.com/paddocklabs/docmirror/pkg/config"
	"github.com/paddocklabs/docmirror/pkg/logging"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "docmirror",
	Short: "Mirrors PDF documents from the FIA site as a static HTML archive.",
	Long: `docmirror is a one-shot batch pipeline meant to be invoked by a
scheduler. Each run scrapes the configured page for PDF links, downloads
documents it has not seen before, converts them to HTML through a fallback
chain of strategies and regenerates the archive index page.`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Execute one full pipeline pass.",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := setup()
		if err != nil {
			return err
		}
		report, err := runner.Run(cmd.Context())
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(report, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List new PDF links without downloading anything.",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := setup()
		if err != nil {
			return err
		}
		refs, err := runner.DiscoverOnly(cmd.Context())
		if err != nil {
			return err
		}
		if len(refs) == 0 {
			fmt.Println("No new PDFs found")
			return nil
		}
		out, _ := json.MarshalIndent(refs, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Regenerate the index page from persisted state only.",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := setup()
		if err != nil {
			return err
		}
		return runner.RebuildIndex()
	},
}

func setup() (*pipeline.Runner, error) {
	// A .env file is optional; environment overrides work without one.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := logging.SetupLogger(cfg.Logging); err != nil {
		return nil, err
	}
	return pipeline.New(cfg)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(runCmd, discoverCmd, indexCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("docmirror failed")
		os.Exit(1)
	}
}
