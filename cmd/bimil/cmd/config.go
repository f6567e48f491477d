package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmcleod/bimil/internal/config"
)

var (
	configInitSystem bool
	configInitPath   string
	configInitForce  bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to a file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configInitPath
		if path == "" {
			var err error
			path, err = config.GetConfigPath(configInitSystem)
			if err != nil {
				return err
			}
		}
		if err := checkOverwrite(path, configInitForce); err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		if err := config.WriteConfigFile(&cfg, path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configInitCmd.Flags().BoolVar(&configInitSystem, "system", false, "write the system-wide file instead of the user file")
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "write to this file")
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "overwrite an existing file")
}
