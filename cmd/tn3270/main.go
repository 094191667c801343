// Command tn3270 is a reference CLI wiring the config, logging, and
// session packages together for manual protocol testing: connect to a
// host, print the screen, type text, and send an AID.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/opentn3270/tn3270/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var yamlPath string

	root := &cobra.Command{
		Use:   "tn3270",
		Short: "Connect to a TN3270(E) host and drive a screen from the command line",
	}
	root.PersistentFlags().StringVar(&yamlPath, "config", "", "path to a YAML config overlay")

	root.AddCommand(newConnectCmd(&yamlPath))
	root.AddCommand(newEnvCmd())
	return root
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables this tool understands",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, line := range config.Describe() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func loadConfig(yamlPath string) (config.Config, *logrus.Entry, error) {
	cfg, err := config.Load(yamlPath)
	if err != nil {
		return cfg, nil, err
	}

	logger := logrus.New()
	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	logger.SetLevel(lvl)
	return cfg, logrus.NewEntry(logger), nil
}
