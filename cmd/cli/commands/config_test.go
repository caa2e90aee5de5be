package commands

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/celestiaorg/reelcast/pkg/api/v1/client"
)

func resetClient(t *testing.T) {
	original := clientInstance
	clientInstance = nil
	t.Cleanup(func() {
		clientInstance = original
		viper.Reset()
	})
}

func TestGetAPIClientFromConfig(t *testing.T) {
	resetClient(t)
	viper.Set(keyURL, "http://reelcast.internal:8080")
	viper.Set(keyToken, "secret")
	viper.Set(keyTimeout, 5*time.Second)

	c, err := getAPIClient()
	require.NoError(t, err)
	require.IsType(t, &client.APIClient{}, c)

	again, err := getAPIClient()
	require.NoError(t, err)
	assert.Same(t, c, again)
}

func TestGetAPIClientErrors(t *testing.T) {
	t.Run("empty address", func(t *testing.T) {
		resetClient(t)
		viper.Set(keyURL, "")
		_, err := getAPIClient()
		assert.EqualError(t, err, "server address cannot be empty")
	})

	t.Run("invalid address", func(t *testing.T) {
		resetClient(t)
		viper.Set(keyURL, "reelcast.internal")
		_, err := getAPIClient()
		assert.Error(t, err)
		assert.Nil(t, clientInstance)
	})
}

func TestEnvironmentOverridesDefault(t *testing.T) {
	resetClient(t)
	t.Setenv("REELCAST_URL", "http://from-env:9000")
	initConfig()
	require.NoError(t, viper.BindPFlag(keyURL, RootCmd.PersistentFlags().Lookup(keyURL)))

	assert.Equal(t, "http://from-env:9000", viper.GetString(keyURL))
}
