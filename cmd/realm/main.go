package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

const Version = "0.3.0"

func newRootCmd() *cobra.Command {
	var cfgPath string
	root := &cobra.Command{
		Use:           "realm",
		Short:         "Math Realm, cultivate by solving arithmetic",
		Long:          "Math Realm turns arithmetic practice into a cultivation journey: answer problems, break through realms and collect treasures.",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate("{{.Name}} v{{.Version}}\n")
	root.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "Path to config file")

	open := func() (*env, error) { return openEnv(cfgPath) }
	root.AddCommand(
		newNewCmd(&cfgPath),
		newPlayCmd(open),
		newStatusCmd(open),
		newCheckInCmd(open),
		newDiscoverCmd(open),
		newCodexCmd(open),
		newWatchCmd(open),
	)
	return root
}

func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "realm.yaml"
	}
	return filepath.Join(dir, "mathrealm", "config.yaml")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, styleBad.Render("✗ "+err.Error()))
		os.Exit(1)
	}
}
