package cli

import "github.com/spf13/cobra"

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// SetVersionInfo records the build information printed by the version command.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("shopmigrate %s (commit: %s, built: %s)\n", version, commit, date)
		},
	}
}
