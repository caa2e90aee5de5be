package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"

	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
)

// configuration keys, settable as flags, REELCAST_* environment variables or
// in ~/.reelcast.yaml
const (
	keyURL     = "url"
	keyToken   = "token"
	keyTimeout = "timeout"
)

// clientInstance is the shared API client instance. Tests replace it with a mock.
var clientInstance client.Client

// initConfig wires the config file and the environment into viper
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		// Search config in home directory with name ".reelcast"
		viper.AddConfigPath(home)
		viper.SetConfigName(".reelcast")
		viper.SetConfigType("yaml")
	}

	// Read environment variables that match "REELCAST_VARNAME"
	viper.SetEnvPrefix("REELCAST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// getAPIClient returns the API client instance, creating it from the
// configuration if necessary
func getAPIClient() (client.Client, error) {
	if clientInstance != nil {
		return clientInstance, nil
	}

	baseURL := viper.GetString(keyURL)
	if baseURL == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	c, err := client.NewClient(&client.Options{
		BaseURL:      baseURL,
		Timeout:      viper.GetDuration(keyTimeout),
		TriggerToken: viper.GetString(keyToken),
	})
	if err != nil {
		return nil, err
	}
	clientInstance = c
	return clientInstance, nil
}
