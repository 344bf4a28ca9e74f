package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ensembled/internal/config"
	"ensembled/internal/deploy"
)

type cliConfig struct {
	ConfigPath string
	ContextDir string
	SwapWait   time.Duration
}

// newOrchestrator wires the deployment pipeline from the shared config file.
// The returned closer owns the record log handle.
func newOrchestrator(cc *cliConfig) (*deploy.Orchestrator, func() error, error) {
	cfg, err := config.Load(cc.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config %s: %w", cc.ConfigPath, err)
	}
	if cfg.Image == "" {
		return nil, nil, fmt.Errorf("config %s: image is required", cc.ConfigPath)
	}
	if cfg.Instance == "" {
		return nil, nil, fmt.Errorf("config %s: instance is required", cc.ConfigPath)
	}
	if cfg.AgentURL == "" {
		return nil, nil, fmt.Errorf("config %s: agent_url is required", cc.ConfigPath)
	}
	recordPath := cfg.RecordPath
	if recordPath == "" {
		recordPath = "deployments.db"
	}
	records, err := deploy.OpenLog(recordPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open record log %s: %w", recordPath, err)
	}
	logger := zerolog.New(os.Stderr).With().Timestamp().Str("svc", "deployctl").Logger()
	o := &deploy.Orchestrator{
		Instance: cfg.Instance,
		Builder: &deploy.DockerBuilder{
			Image:      cfg.Image,
			ContextDir: cc.ContextDir,
			Runner:     deploy.ExecRunner{},
			Log:        logger,
		},
		Swapper: deploy.NewSwapClient(cfg.AgentURL, cc.SwapWait),
		Records: records,
		Log:     logger,
	}
	return o, records.Close, nil
}

func printRecord(r deploy.Record) {
	fmt.Printf("%-12s  %-20s  %-12s  %s", r.Status, r.Tag, r.Instance, r.At.Format(time.RFC3339))
	if r.Detail != "" {
		fmt.Printf("  (%s)", r.Detail)
	}
	fmt.Println()
}

// buildRootCmd constructs the Cobra command tree.
func buildRootCmd() *cobra.Command {
	cc := &cliConfig{}
	root := &cobra.Command{
		Use:           "deployctl",
		Short:         "Build, publish and roll out ensembled server images",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cc.ConfigPath, "config", envOr("ENSEMBLED_CONFIG", "ensembled.yaml"), "Config file (.yaml/.json/.toml)")
	root.PersistentFlags().StringVar(&cc.ContextDir, "context", ".", "Docker build context directory")
	root.PersistentFlags().DurationVar(&cc.SwapWait, "swap-wait", 5*time.Minute, "How long to wait for the remote swap to complete")

	deployCmd := &cobra.Command{
		Use:     "deploy",
		Short:   "Build and publish a new image, then roll the instance to it",
		Example: "  deployctl deploy\n  deployctl deploy --tag 20260831-120000-ab12cd34",
		RunE: func(cmd *cobra.Command, args []string) error {
			// An empty tag lets the orchestrator generate one.
			tag, _ := cmd.Flags().GetString("tag")
			o, closeLog, err := newOrchestrator(cc)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			rec, err := o.Deploy(cmd.Context(), tag)
			printRecord(rec)
			return err
		},
	}
	deployCmd.Flags().String("tag", "", "Explicit version tag (defaults to a generated one)")

	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Roll the instance back to the previous healthy tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, closeLog, err := newOrchestrator(cc)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			rec, err := o.Rollback(cmd.Context())
			printRecord(rec)
			return err
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the tag currently serving and the latest attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			o, closeLog, err := newOrchestrator(cc)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			current, latest, err := o.Status(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("serving: %s\n", current)
			if latest != nil {
				fmt.Print("latest:  ")
				printRecord(*latest)
			}
			return nil
		},
	}

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent deployment attempts, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			o, closeLog, err := newOrchestrator(cc)
			if err != nil {
				return err
			}
			defer func() { _ = closeLog() }()
			recs, err := o.Records.History(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, r := range recs {
				printRecord(r)
			}
			return nil
		},
	}
	historyCmd.Flags().Int("limit", 20, "Maximum records to show")

	root.AddCommand(deployCmd, rollbackCmd, statusCmd, historyCmd)
	return root
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
