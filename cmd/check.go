package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Ian-Costa18/TorDownloader/internal/config"
	"github.com/Ian-Costa18/TorDownloader/internal/output"
	"github.com/Ian-Costa18/TorDownloader/internal/tor"
	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [CONFIG=SETTING ...]",
		Short: "Health-check the Tor SOCKS proxy without downloading anything",
		Args:  cobra.ArbitraryArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := config.Load(args)
			if err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			if err := utils.InitLogger(debug, cfg.LogFile); err != nil {
				output.PrintError(err.Error())
				os.Exit(1)
			}
			status := tor.Check(cfg.ProxyAddr(), cfg.MaxTorChecks)
			switch status.State {
			case utils.ProxyHealthy:
				output.PrintSuccess(fmt.Sprintf("%s Tor proxy at %s is healthy (%d check(s))", output.StyleSymbols["pass"], cfg.ProxyAddr(), status.Checks))
			case utils.ProxyUnreachable:
				output.PrintError(fmt.Sprintf("%s Tor proxy at %s is unreachable", output.StyleSymbols["fail"], cfg.ProxyAddr()))
				os.Exit(1)
			case utils.ProxyUnhealthy:
				output.PrintError(fmt.Sprintf("%s Tor proxy at %s is not routing traffic after %d check(s)", output.StyleSymbols["fail"], cfg.ProxyAddr(), status.Checks))
				os.Exit(1)
			}
		},
	}
}
