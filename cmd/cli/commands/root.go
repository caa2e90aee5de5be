package commands

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
	"github.com/celestiaorg/reelcast/pkg/api/v1/routes"
)

// cfgFile overrides the default config file location
var cfgFile string

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "reelcast",
	Short: "reelcast CLI - A command line interface for the reelcast API",
	Long: `reelcast is a command line tool for submitting and following multi-scene
video renders.

Common workflows:

  Render a video described in a file:
    reelcast jobs create --file video.json

  Render a video from flags:
    reelcast jobs create --identity https://cdn/me.png \
      --scene "talking_head:Hi, welcome back" --scene "static_asset:Here is the chart"

  Follow a job until it settles:
    reelcast jobs watch <job-id>

  Resume a failed job where it stopped:
    reelcast jobs retry <job-id>

Configuration:
  Flags take precedence over environment variables, which take precedence
  over ~/.reelcast.yaml:
    REELCAST_URL      API endpoint (default: http://localhost:8080)
    REELCAST_TOKEN    Trigger token for the advance endpoint
    REELCAST_TIMEOUT  Request timeout`,
	SilenceUsage: true,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.reelcast.yaml)")

	RootCmd.PersistentFlags().StringP(keyURL, "s", routes.DefaultBaseURL, "Address of the reelcast API server")
	_ = viper.BindPFlag(keyURL, RootCmd.PersistentFlags().Lookup(keyURL))

	RootCmd.PersistentFlags().StringP(keyToken, "t", "", "Trigger token for the advance endpoint")
	_ = viper.BindPFlag(keyToken, RootCmd.PersistentFlags().Lookup(keyToken))

	RootCmd.PersistentFlags().Duration(keyTimeout, client.DefaultTimeout, "API request timeout")
	_ = viper.BindPFlag(keyTimeout, RootCmd.PersistentFlags().Lookup(keyTimeout))

	RootCmd.AddCommand(GetJobsCmd())
	RootCmd.AddCommand(healthCmd)
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return RootCmd.Execute()
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the API server is up",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		c, err := getAPIClient()
		if err != nil {
			return err
		}
		resp, err := c.HealthCheck(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, resp)
	},
}
