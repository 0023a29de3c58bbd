// Package cli implements the shopmigrate command line.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/rflorenc/shop-migration-workbench/internal/config"
)

// globalOptions are the flags shared by every command.
type globalOptions struct {
	configPath string
	envFile    string
}

func (g *globalOptions) load() (*config.Config, error) {
	return config.Load(g.configPath, g.envFile)
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	g := &globalOptions{}
	root := &cobra.Command{
		Use:   "shopmigrate",
		Short: "Copy catalog data from one shop into another",
		Long: `shopmigrate copies products, collections, pages, blogs, metaobjects and
metafield definitions from a source shop into a target shop through the
admin API. Items that already exist in the target are skipped, overwritten
or put to you, depending on the conflict policy.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&g.configPath, "config", "", "Path to config file (YAML)")
	root.PersistentFlags().StringVar(&g.envFile, "env-file", "", "Path to a .env file with shop tokens (default .env if present)")

	root.AddCommand(
		newServeCmd(g),
		newMigrateCmd(g),
		newHistoryCmd(g),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}
