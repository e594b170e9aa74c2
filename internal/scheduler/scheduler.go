// Package scheduler owns the bounded pool of download workers. Workers
// pull targets from the queue until it drains; outcomes flow back through
// a single channel in completion order.
package scheduler

import (
	"fmt"
	"sync"
	"time"

	"github.com/Ian-Costa18/TorDownloader/internal/downloader"
	"github.com/Ian-Costa18/TorDownloader/internal/output"
	"github.com/Ian-Costa18/TorDownloader/internal/queue"
	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

// Run executes the pool over the queue. The proxy status gates startup:
// anything other than Healthy returns an error before a single target
// enters flight. One outcome is returned per target processed.
func Run(q *queue.Queue, cfg utils.PoolConfig, status utils.ProxyStatus, mgr *output.Manager) ([]utils.DownloadOutcome, error) {
	if status.State != utils.ProxyHealthy {
		return nil, fmt.Errorf("proxy is %s after %d check(s), refusing to start downloads", status.State, status.Checks)
	}
	return runPool(q, cfg, downloader.New(cfg), mgr), nil
}

func runPool(q *queue.Queue, cfg utils.PoolConfig, d *downloader.Downloader, mgr *output.Manager) []utils.DownloadOutcome {
	log := utils.GetLogger("scheduler")
	numWorkers := cfg.MaxDownloads
	if remaining := q.Remaining(); remaining < numWorkers {
		numWorkers = remaining
	}
	log.Info().Int("workers", numWorkers).Int("targets", q.Remaining()).Msg("Starting download pool")

	outcomeCh := make(chan utils.DownloadOutcome, q.Remaining())
	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			processTargets(q, d, mgr, outcomeCh)
		}()
	}
	go func() {
		wg.Wait()
		close(outcomeCh)
	}()

	var outcomes []utils.DownloadOutcome
	for outcome := range outcomeCh {
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// processTargets handles target processing for one worker slot.
func processTargets(q *queue.Queue, d *downloader.Downloader, mgr *output.Manager, outcomeCh chan<- utils.DownloadOutcome) {
	log := utils.GetLogger("scheduler")
	for {
		target, ok := q.Next()
		if !ok {
			return
		}
		mgr.Register(target.ID, target.URL)
		log.Debug().Str("id", target.ID).Str("url", target.URL).Msg("Worker picked up target")

		start := time.Now()
		if err := d.Resolve(target); err != nil {
			log.Error().Err(err).Str("url", target.URL).Msg("Failed to resolve target")
			outcome := utils.DownloadOutcome{
				Target:   target,
				Status:   utils.OutcomeFailed,
				Kind:     downloader.Classify(err),
				Attempts: 0,
				Err:      err,
				Elapsed:  time.Since(start),
			}
			mgr.Outcome(outcome)
			outcomeCh <- outcome
			continue
		}
		mgr.SetFile(target.ID, target.OutputPath, target.ExpectedSize)

		progressCh := make(chan int64, 100)
		var progressWg sync.WaitGroup
		progressWg.Add(1)
		go func(id string) {
			defer progressWg.Done()
			for delta := range progressCh {
				mgr.Update(id, delta)
			}
		}(target.ID)

		outcome := d.Fetch(target, progressCh)
		close(progressCh)
		progressWg.Wait()

		mgr.Outcome(outcome)
		outcomeCh <- outcome
	}
}
