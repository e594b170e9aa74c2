package downloader

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Ian-Costa18/TorDownloader/internal/utils"
)

func testData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 256)
	}
	return data
}

func testDownloader(dir string, retries int) *Downloader {
	cfg := utils.PoolConfig{
		OutputDir:    dir,
		MaxRetries:   retries,
		MaxDownloads: 1,
	}
	client := utils.NewTorHTTPClient(utils.HTTPClientConfig{Timeout: 10 * time.Second})
	return NewWithClient(cfg, client)
}

// fetch runs Fetch with a drained progress channel.
func fetch(d *Downloader, target *utils.Target) utils.DownloadOutcome {
	progressCh := make(chan int64, 100)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for range progressCh {
		}
	}()
	outcome := d.Fetch(target, progressCh)
	close(progressCh)
	<-done
	return outcome
}

// serveRanges answers HEAD with size metadata and GET with Range support.
func serveRanges(data []byte, requests *atomic.Int32) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if requests != nil {
			requests.Add(1)
		}
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		rangeHeader := r.Header.Get("Range")
		if rangeHeader == "" {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Write(data)
			return
		}
		start, _ := strconv.ParseInt(strings.TrimSuffix(strings.TrimPrefix(rangeHeader, "bytes="), "-"), 10, 64)
		if start >= int64(len(data)) {
			w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
			return
		}
		w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, len(data)-1, len(data)))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)-int(start)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[start:])
	}
}

func TestFetchBasic(t *testing.T) {
	data := testData(3*utils.DefaultBufferSize + 100)
	server := httptest.NewServer(serveRanges(data, nil))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 3)
	target := NewTarget(server.URL + "/archive.zip")
	if err := d.Resolve(target); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if target.ExpectedSize != int64(len(data)) {
		t.Errorf("ExpectedSize = %d, want %d", target.ExpectedSize, len(data))
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeCompleted {
		t.Fatalf("Status = %s (%v), want completed", outcome.Status, outcome.Err)
	}
	if outcome.BytesWritten != int64(len(data)) {
		t.Errorf("BytesWritten = %d, want %d", outcome.BytesWritten, len(data))
	}
	got, err := os.ReadFile(filepath.Join(dir, "archive.zip"))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("downloaded content differs from source")
	}
}

func TestFetchSkipsCompleteFile(t *testing.T) {
	data := testData(4096)
	var requests atomic.Int32
	server := httptest.NewServer(serveRanges(data, &requests))
	defer server.Close()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "archive.zip"), data, 0644); err != nil {
		t.Fatal(err)
	}
	d := testDownloader(dir, 3)
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/archive.zip",
		OutputPath:   filepath.Join(dir, "archive.zip"),
		ExpectedSize: int64(len(data)),
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeSkipped {
		t.Fatalf("Status = %s, want skipped", outcome.Status)
	}
	if got := requests.Load(); got != 0 {
		t.Errorf("server saw %d requests, want 0 for a complete file", got)
	}
}

func TestFetchResumesPartialFile(t *testing.T) {
	data := testData(2*utils.DefaultBufferSize + 17)
	half := len(data) / 2
	var sawRange atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet && r.Header.Get("Range") != "" {
			sawRange.Store(r.Header.Get("Range"))
		}
		serveRanges(data, nil)(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "archive.zip")
	if err := os.WriteFile(dest, data[:half], 0644); err != nil {
		t.Fatal(err)
	}
	d := testDownloader(dir, 3)
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/archive.zip",
		OutputPath:   dest,
		ExpectedSize: int64(len(data)),
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeCompleted {
		t.Fatalf("Status = %s (%v), want completed", outcome.Status, outcome.Err)
	}
	if want := fmt.Sprintf("bytes=%d-", half); sawRange.Load() != want {
		t.Errorf("Range header = %v, want %s", sawRange.Load(), want)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("resumed content differs from source")
	}
}

func TestFetchRestartsWhenRangeUnsupported(t *testing.T) {
	data := testData(8192)
	// Server ignores Range headers entirely and always sends the full body.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.Write(data)
	}))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "archive.zip")
	// Stale partial content that does not match the source.
	if err := os.WriteFile(dest, bytes.Repeat([]byte{0xff}, 1000), 0644); err != nil {
		t.Fatal(err)
	}
	d := testDownloader(dir, 3)
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/archive.zip",
		OutputPath:   dest,
		ExpectedSize: int64(len(data)),
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeCompleted {
		t.Fatalf("Status = %s (%v), want completed", outcome.Status, outcome.Err)
	}
	got, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("restarted content differs from source, truncate fallback broken")
	}
}

func TestFetchRecoversFromMidStreamDrop(t *testing.T) {
	data := testData(4 * utils.DefaultBufferSize)
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		if gets.Add(1) == 1 {
			// Send half the body then kill the connection.
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data[:len(data)/2])
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			panic(http.ErrAbortHandler)
		}
		serveRanges(data, nil)(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 5)
	target := NewTarget(server.URL + "/archive.zip")
	if err := d.Resolve(target); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeCompleted {
		t.Fatalf("Status = %s (%v), want completed", outcome.Status, outcome.Err)
	}
	if outcome.Attempts < 2 {
		t.Errorf("Attempts = %d, want at least 2", outcome.Attempts)
	}
	got, err := os.ReadFile(target.OutputPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, data) {
		t.Error("content after mid-stream recovery differs from source")
	}
}

func TestFetchProgressDeltasSumToFileSize(t *testing.T) {
	data := testData(4 * utils.DefaultBufferSize)
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.Header().Set("Accept-Ranges", "bytes")
			return
		}
		if gets.Add(1) == 1 {
			w.Header().Set("Content-Length", strconv.Itoa(len(data)))
			w.WriteHeader(http.StatusOK)
			w.Write(data[:len(data)/2])
			if f, ok := w.(http.Flusher); ok {
				f.Flush()
			}
			panic(http.ErrAbortHandler)
		}
		serveRanges(data, nil)(w, r)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 5)
	target := NewTarget(server.URL + "/archive.zip")
	if err := d.Resolve(target); err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	// Sum every delta the downloader reports. The retry after the drop
	// resumes from the bytes already on disk, so the total must equal the
	// file size exactly, never more.
	progressCh := make(chan int64, 100)
	var total int64
	done := make(chan struct{})
	go func() {
		defer close(done)
		for delta := range progressCh {
			total += delta
		}
	}()
	outcome := d.Fetch(target, progressCh)
	close(progressCh)
	<-done

	if outcome.Status != utils.OutcomeCompleted {
		t.Fatalf("Status = %s (%v), want completed", outcome.Status, outcome.Err)
	}
	if total != int64(len(data)) {
		t.Errorf("progress deltas sum to %d, want %d", total, len(data))
	}
}

func TestFetch404NotRetried(t *testing.T) {
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 5)
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/gone.zip",
		OutputPath:   filepath.Join(dir, "gone.zip"),
		ExpectedSize: -1,
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if outcome.Kind != utils.ErrKindLink {
		t.Errorf("Kind = %s, want link", outcome.Kind)
	}
	if got := gets.Load(); got != 1 {
		t.Errorf("server saw %d GETs, want 1 (404 must not be retried)", got)
	}
}

func TestFetchSizeMismatch(t *testing.T) {
	data := testData(4096)
	server := httptest.NewServer(serveRanges(data, nil))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 3)
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/archive.zip",
		OutputPath:   filepath.Join(dir, "archive.zip"),
		ExpectedSize: int64(len(data)) + 10,
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if outcome.Kind != utils.ErrKindSizeMismatch {
		t.Errorf("Kind = %s, want size-mismatch", outcome.Kind)
	}
}

func TestFetch416TreatedAsComplete(t *testing.T) {
	data := testData(4096)
	server := httptest.NewServer(serveRanges(data, nil))
	defer server.Close()

	dir := t.TempDir()
	dest := filepath.Join(dir, "archive.zip")
	if err := os.WriteFile(dest, data, 0644); err != nil {
		t.Fatal(err)
	}
	d := testDownloader(dir, 3)
	// Size unknown: the stat short-circuit can't fire, so the downloader
	// issues a resume request and the server answers 416.
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/archive.zip",
		OutputPath:   dest,
		ExpectedSize: -1,
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeSkipped {
		t.Fatalf("Status = %s (%v), want skipped", outcome.Status, outcome.Err)
	}
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	var gets atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gets.Add(1)
		panic(http.ErrAbortHandler)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 3)
	target := &utils.Target{
		ID:           "t1",
		URL:          server.URL + "/flaky.zip",
		OutputPath:   filepath.Join(dir, "flaky.zip"),
		ExpectedSize: -1,
	}

	outcome := fetch(d, target)
	if outcome.Status != utils.OutcomeFailed {
		t.Fatalf("Status = %s, want failed", outcome.Status)
	}
	if outcome.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", outcome.Attempts)
	}
	if got := gets.Load(); got != 3 {
		t.Errorf("server saw %d GETs, want 3", got)
	}
}

func TestResolveRejectsBadLinks(t *testing.T) {
	d := testDownloader(t.TempDir(), 3)
	for _, rawURL := range []string{"ftp://example.onion/file.zip", "://bad"} {
		var linkErr *LinkError
		if err := d.Resolve(NewTarget(rawURL)); !errors.As(err, &linkErr) {
			t.Errorf("Resolve(%q) = %v, want LinkError", rawURL, err)
		}
	}
}

func TestResolveUsesContentDisposition(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "1234")
		w.Header().Set("Content-Disposition", `attachment; filename="dump.tar.gz"`)
	}))
	defer server.Close()

	dir := t.TempDir()
	d := testDownloader(dir, 3)
	target := NewTarget(server.URL + "/download")
	if err := d.Resolve(target); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if target.OutputPath != filepath.Join(dir, "dump.tar.gz") {
		t.Errorf("OutputPath = %s, want dump.tar.gz in %s", target.OutputPath, dir)
	}
	if target.ExpectedSize != 1234 {
		t.Errorf("ExpectedSize = %d, want 1234", target.ExpectedSize)
	}
}

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want utils.ErrorKind
	}{
		{"link error", &LinkError{URL: "u", Reason: "404"}, utils.ErrKindLink},
		{"wrapped link error", fmt.Errorf("attempt: %w", &LinkError{URL: "u", Reason: "404"}), utils.ErrKindLink},
		{"timeout", &url.Error{Op: "Get", URL: "u", Err: timeoutError{}}, utils.ErrKindTimeout},
		{"range unsupported", fmt.Errorf("resume: %w", utils.ErrRangeRequestsNotSupported), utils.ErrKindRangeUnsupported},
		{"socks refusal", &url.Error{Op: "Get", URL: "u", Err: errors.New("socks connect tcp 127.0.0.1:9051->x.onion:80: unknown error general SOCKS server failure")}, utils.ErrKindProxyRejected},
		{"plain connection error", errors.New("connection reset by peer"), utils.ErrKindConnection},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify = %s, want %s", got, tt.want)
			}
		})
	}
}
