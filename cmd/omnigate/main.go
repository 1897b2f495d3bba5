package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "omnigate",
		Short: "Omnichannel conversation gateway",
		Long:  "Carries agent conversations over heterogeneous messaging providers behind one API.",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the TOML config file")
	root.AddCommand(serveCmd(), migrateCmd(), tokenCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func resolveConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return os.Getenv("CONFIG_PATH")
}
