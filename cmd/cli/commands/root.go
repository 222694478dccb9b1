package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vantagevision/vantage/config"
	"github.com/vantagevision/vantage/internal/logger"
	"github.com/vantagevision/vantage/internal/session"
	"github.com/vantagevision/vantage/internal/types"
	"github.com/vantagevision/vantage/internal/workflow"
	"github.com/vantagevision/vantage/pkg/api/v1/client"
)

// flag names
const (
	flagServerAddress = "server-address"
	flagConfigFile    = "config"
	flagWatch         = "watch"
)

var (
	// cfg is the resolved configuration for this invocation
	cfg config.Config
	// apiClient is the shared API client instance
	apiClient client.Client
	// store is the persisted session store
	store *session.Store

	// serverAddress holds the target API server address. Flag parsing sets this.
	serverAddress string
	// configFile is the optional config file path
	configFile string
)

func init() {
	RootCmd.PersistentFlags().StringVarP(&serverAddress, flagServerAddress, "s", "", "Address of the Vantage API server (env: VANTAGE_SERVER_ADDRESS)")
	RootCmd.PersistentFlags().StringVarP(&configFile, flagConfigFile, "c", "", "Path to a YAML config file")

	RootCmd.AddCommand(GetTrainCmd())
	RootCmd.AddCommand(GetInferCmd())
	RootCmd.AddCommand(GetDatasetsCmd())
	RootCmd.AddCommand(GetModelsCmd())
	RootCmd.AddCommand(GetSessionCmd())
	RootCmd.AddCommand(GetResumeCmd())
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "vantage",
	Short: "Vantage CLI - track training and inference jobs on the Vantage platform",
	Long: `Vantage CLI submits, tracks, and recovers long-running training and
inference jobs against the Vantage job API. Job state survives restarts: an
in-flight job is picked back up on the next invocation without re-submission.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return err
		}

		// Precedence: flag > env var > config file > default
		if cmd.Flags().Changed(flagServerAddress) && serverAddress != "" {
			cfg.ServerAddress = serverAddress
		}
		if cfg.ServerAddress == "" {
			return fmt.Errorf("server address cannot be empty")
		}

		logger.SetLevel(cfg.LogLevel)

		if err := initClient(); err != nil {
			return err
		}

		store, err = session.Open(cfg.SessionDir)
		return err
	},
}

// initClient initializes the API client
func initClient() error {
	var err error
	opts := client.DefaultOptions()
	opts.BaseURL = cfg.ServerAddress
	opts.AuthToken = cfg.AuthToken

	apiClient, err = client.NewClient(opts)
	return err
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

// newTracker builds a tracker over the shared client and store
func newTracker(onUpdate func(types.Job)) (*workflow.Tracker, error) {
	return workflow.New(workflow.Options{
		Client:       apiClient,
		Store:        store,
		PollInterval: cfg.PollInterval,
		OnUpdate:     onUpdate,
	})
}

// progressLine renders a compact one-line progress report for --watch
func progressLine(job types.Job) string {
	return fmt.Sprintf("\r%s  %3d%%  (%d/%d)      ",
		job.Status, job.Progress.Percent, job.Progress.Processed, job.Progress.Total)
}
