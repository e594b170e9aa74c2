package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Ian-Costa18/TorDownloader/internal/config"
)

func newPathsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "paths",
		Short: "Print the default data directory and file locations",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			defaults := config.Default()
			fmt.Println("Data directory: ", config.DataDir())
			fmt.Println("Links file:     ", defaults.LinksFile)
			fmt.Println("Log file:       ", defaults.LogFile)
			fmt.Println("Output directory:", defaults.OutputDir)
		},
	}
}
