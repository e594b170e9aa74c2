package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

type ProgressInfo struct {
	ID         string
	URL        string
	Name       string
	TotalSize  int64
	Downloaded int64
	Status     string // pending, downloading, success, skipped, error
	Message    string
	StartTime  time.Time
}

type progressEvent struct {
	id    string
	delta int64
}

// Manager aggregates per-download progress and outcome events. Byte-delta
// intake goes through a buffered channel with a drop-on-full policy so a
// slow or stalled display can never slow a download worker.
type Manager struct {
	mu       sync.RWMutex
	infos    map[string]*ProgressInfo
	order    []string
	events   chan progressEvent
	doneCh   chan struct{}
	displayW sync.WaitGroup
}

func NewManager() *Manager {
	return &Manager{
		infos:  make(map[string]*ProgressInfo),
		events: make(chan progressEvent, 4096),
		doneCh: make(chan struct{}),
	}
}

func (m *Manager) Register(id, url string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.infos[id] = &ProgressInfo{
		ID:        id,
		URL:       url,
		Status:    "pending",
		TotalSize: -1,
		StartTime: time.Now(),
	}
	m.order = append(m.order, id)
}

// SetFile records the resolved destination name and expected size once the
// target has been built.
func (m *Manager) SetFile(id, name string, totalSize int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if info, exists := m.infos[id]; exists {
		info.Name = name
		info.TotalSize = totalSize
		info.Status = "downloading"
	}
}

// Update reports a byte-count delta for a download. Never blocks: if the
// event buffer is full the delta is dropped rather than stalling the
// worker.
func (m *Manager) Update(id string, delta int64) {
	select {
	case m.events <- progressEvent{id: id, delta: delta}:
	default:
	}
}

// Outcome records the final result for a target and prints its line.
func (m *Manager) Outcome(outcome utils.DownloadOutcome) {
	m.mu.Lock()
	info, exists := m.infos[outcome.Target.ID]
	if exists {
		switch outcome.Status {
		case utils.OutcomeCompleted:
			info.Status = "success"
			info.Downloaded = outcome.BytesWritten
			info.Message = fmt.Sprintf("Completed %s (%s)", info.Name, utils.FormatBytes(uint64(outcome.BytesWritten)))
		case utils.OutcomeSkipped:
			info.Status = "skipped"
			info.Message = fmt.Sprintf("Skipped %s: %s", info.Name, outcome.SkipReason)
		case utils.OutcomeFailed:
			info.Status = "error"
			info.Message = fmt.Sprintf("Failed %s after %d attempt(s): %s [%s]", outcome.Target.URL, outcome.Attempts, outcome.Err, outcome.Kind)
		}
	}
	m.mu.Unlock()
	if !exists {
		return
	}
	fmt.Printf("\r\033[K")
	switch outcome.Status {
	case utils.OutcomeCompleted:
		PrintSuccess(fmt.Sprintf("%s %s", StyleSymbols["pass"], info.Message))
	case utils.OutcomeSkipped:
		PrintDetail(fmt.Sprintf("%s %s", StyleSymbols["bullet"], info.Message))
	case utils.OutcomeFailed:
		PrintError(fmt.Sprintf("%s %s", StyleSymbols["fail"], info.Message))
	}
}

// StartDisplay launches the display goroutine: drains progress events and
// periodically rewrites a one-line rotating status for active downloads.
func (m *Manager) StartDisplay() {
	m.displayW.Add(1)
	go func() {
		defer m.displayW.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		currentIndex := 0
		for {
			select {
			case ev := <-m.events:
				m.mu.Lock()
				if info, exists := m.infos[ev.id]; exists {
					info.Downloaded += ev.delta
				}
				m.mu.Unlock()
			case <-ticker.C:
				currentIndex = m.renderLine(currentIndex)
			case <-m.doneCh:
				fmt.Printf("\r\033[K")
				return
			}
		}
	}()
}

func (m *Manager) renderLine(currentIndex int) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var active []*ProgressInfo
	for _, id := range m.order {
		if info := m.infos[id]; info.Status == "downloading" {
			active = append(active, info)
		}
	}
	if len(active) == 0 {
		return 0
	}
	if currentIndex >= len(active) {
		currentIndex = 0
	}
	info := active[currentIndex]
	elapsed := time.Since(info.StartTime).Seconds()
	fmt.Printf("\r\033[K")
	if info.TotalSize > 0 {
		percent := float64(info.Downloaded) / float64(info.TotalSize) * 100
		fmt.Printf("[%s] %.2f%% (%s/%s) %s", info.Name, percent,
			utils.FormatBytes(uint64(info.Downloaded)), utils.FormatBytes(uint64(info.TotalSize)),
			utils.FormatSpeed(info.Downloaded, elapsed))
	} else {
		fmt.Printf("[%s] %s %s", info.Name,
			utils.FormatBytes(uint64(info.Downloaded)),
			utils.FormatSpeed(info.Downloaded, elapsed))
	}
	return currentIndex + 1
}

// StopDisplay stops the display goroutine and waits for it to exit.
func (m *Manager) StopDisplay() {
	close(m.doneCh)
	m.displayW.Wait()
}

// ShowSummary prints one line per target plus run totals.
func (m *Manager) ShowSummary(outcomes []utils.DownloadOutcome, elapsed time.Duration) {
	fmt.Println()
	PrintHeader("All Downloads Finished:")
	var completed, skipped, failed int
	var totalBytes int64
	for _, outcome := range outcomes {
		switch outcome.Status {
		case utils.OutcomeCompleted:
			completed++
			totalBytes += outcome.BytesWritten
			PrintSuccess(fmt.Sprintf("  %s %s %s %s", StyleSymbols["pass"], outcome.Target.URL, StyleSymbols["arrow"], outcome.Target.OutputPath))
		case utils.OutcomeSkipped:
			skipped++
			PrintDetail(fmt.Sprintf("  %s %s (%s)", StyleSymbols["bullet"], outcome.Target.URL, outcome.SkipReason))
		case utils.OutcomeFailed:
			failed++
			PrintError(fmt.Sprintf("  %s %s (%s after %d attempts)", StyleSymbols["fail"], outcome.Target.URL, outcome.Kind, outcome.Attempts))
		}
	}
	PrintInfo(fmt.Sprintf("%d completed, %d skipped, %d failed %s %s in %.1fs",
		completed, skipped, failed, StyleSymbols["bullet"],
		utils.FormatBytes(uint64(totalBytes)), elapsed.Seconds()))
}
