package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ian-Costa18/TorDownloader/internal/config"
	"github.com/Ian-Costa18/TorDownloader/internal/downloader"
	"github.com/Ian-Costa18/TorDownloader/internal/links"
	"github.com/Ian-Costa18/TorDownloader/internal/output"
	"github.com/Ian-Costa18/TorDownloader/internal/queue"
	"github.com/Ian-Costa18/TorDownloader/internal/scheduler"
	"github.com/Ian-Costa18/TorDownloader/internal/tor"
	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

var debug bool

var Version = "dev"

var rootCmd = &cobra.Command{
	Use:   "tordownloader [CONFIG=SETTING ...]",
	Short: "TorDownloader streams files from Tor sites with resumable, bounded-parallel downloads",
	Long: `TorDownloader downloads a list of files through a local Tor SOCKS proxy.
Downloads are streamed to disk, partially downloaded files are resumed with
byte-range requests, and the proxy is health-checked before any download starts.

Options may come from a JSON config file and/or CONFIG=SETTING arguments
(arguments win), e.g.:

  tordownloader config=config.json max_downloads=7 links_file=links.json`,
	Version: Version,
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDownloader(args); err != nil {
			output.PrintError(err.Error())
			os.Exit(1)
		}
	},
}

func runDownloader(args []string) error {
	start := time.Now()
	cfg, err := config.Load(args)
	if err != nil {
		return err
	}
	if err := utils.InitLogger(debug, cfg.LogFile); err != nil {
		return fmt.Errorf("error setting up logging: %v", err)
	}
	log := utils.GetLogger("main")
	log.Info().Str("version", Version).Msg("Starting TorDownloader")
	log.Debug().Interface("config", cfg).Msg("Merged configuration")

	urls, err := links.Load(cfg.LinksFile)
	if err != nil {
		return err
	}

	if cfg.TorPath != "" {
		instance, err := tor.StartInstance(cfg.TorPath, cfg.SocksPort)
		if err != nil {
			return err
		}
		defer instance.Stop()
	}

	status := tor.Check(cfg.ProxyAddr(), cfg.MaxTorChecks)
	if status.State != utils.ProxyHealthy {
		return fmt.Errorf("tor proxy at %s is %s after %d check(s), aborting run", cfg.ProxyAddr(), status.State, status.Checks)
	}

	targets := make([]*utils.Target, 0, len(urls))
	for _, url := range urls {
		targets = append(targets, downloader.NewTarget(url))
	}
	q := queue.New(targets)

	mgr := output.NewManager()
	mgr.StartDisplay()
	outcomes, err := scheduler.Run(q, cfg.PoolConfig(), status, mgr)
	mgr.StopDisplay()
	if err != nil {
		return err
	}
	mgr.ShowSummary(outcomes, time.Since(start))

	failed := 0
	for _, outcome := range outcomes {
		if outcome.Status == utils.OutcomeFailed {
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d download(s) failed", failed)
	}
	return nil
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.AddCommand(newCheckCmd())
	rootCmd.AddCommand(newPathsCmd())
}
