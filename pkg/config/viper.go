// Package config initializes the process-wide Viper instance used by the CLI.
// It reads settings from a config file, a .env file, environment variables,
// and command-line flags, providing a unified configuration system.
package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	appconfig "github.com/nickelblock/forecast-maps/internal/config"
)

// InitConfig prepares the global Viper instance. cfgFile, when set, replaces
// the search paths. Missing files are not fatal: defaults and environment
// variables are enough to run every pipeline.
func InitConfig(cfgFile string, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	// .env values land in the process environment before AutomaticEnv reads it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warn("failed to load .env file", zap.Error(err))
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.AddConfigPath(".")
		viper.AddConfigPath("/etc/wxmaps/")
		viper.AddConfigPath("$HOME/.wxmaps")
	}

	appconfig.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix(appconfig.EnvPrefix) // e.g., WXMAPS_OUTPUT_DIR=/srv/maps
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			logger.Debug("config file not found; using defaults and environment variables")
			return
		}
		logger.Error("error reading config file", zap.Error(err))
		return
	}
	logger.Info("using config file", zap.String("path", viper.ConfigFileUsed()))
}
