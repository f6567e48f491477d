package cmd

import (
	"github.com/awnumar/memguard"
	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/config"
)

// Version is set at build time with -ldflags "-X".
var Version = "dev"

var (
	configPath string
	cfg        config.Config
)

var rootCmd = &cobra.Command{
	Use:   "bimil",
	Short: "Bimil is a password safe",
	Long: `Bimil keeps passwords, notes and two-factor keys in encrypted documents.
It reads legacy Bimil containers and converts them to the current format.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.LoadConfig[config.Config](cmd, config.Defaults(), configPath)
		if err != nil {
			return err
		}
		cfg = c
		return setupLogging(cmd.ErrOrStderr(), cfg.Log.Level)
	},
}

func Execute() {
	memguard.CatchInterrupt()
	if err := rootCmd.Execute(); err != nil {
		memguard.SafeExit(1)
	}
	memguard.Purge()
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "configuration file (default: bimil.yaml in the user or system config directory)")
	flags.String("store-backend", "", "document store backend: memory, bbolt or postgres")
	flags.String("store-path", "", "bbolt database file")
	flags.String("store-dsn", "", "postgres connection string")
	flags.String("store-namespace", "", "namespace inside the document store")
	flags.String("kdf-profile", "", "key derivation profile for saved documents: interactive, moderate or sensitive")
	flags.String("log-level", "", "log level: debug, info, warn or error")
}
