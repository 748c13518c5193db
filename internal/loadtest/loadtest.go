// Package loadtest drives concurrent search traffic at a running docsearch
// server and summarises latency and status codes.
package loadtest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultQueries is the query mix used when Config.Queries is empty.
var DefaultQueries = []string{
	"inverted index",
	"document ranking",
	"search engine",
	"query processing",
	"term frequency",
	"tokenizer",
	"bm25 scoring",
	"stop words",
	"document length",
	"full text search",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Queries     []string
	Limit       int
	// Rate caps total requests per second across all workers. Zero means
	// unthrottled.
	Rate float64
	// Client overrides the HTTP client, mainly for tests.
	Client *http.Client
}

type recorder struct {
	total   atomic.Int64
	success atomic.Int64
	failed  atomic.Int64

	mu        sync.Mutex
	latencies []time.Duration
	codes     map[int]int64
}

func newRecorder() *recorder {
	return &recorder{
		latencies: make([]time.Duration, 0, 4096),
		codes:     make(map[int]int64),
	}
}

func (r *recorder) record(d time.Duration, status int, err error) {
	r.total.Add(1)
	if err != nil {
		r.failed.Add(1)
		return
	}
	if status >= 200 && status < 300 {
		r.success.Add(1)
	} else {
		r.failed.Add(1)
	}
	r.mu.Lock()
	r.latencies = append(r.latencies, d)
	r.codes[status]++
	r.mu.Unlock()
}

// Report is the outcome of one run. Latencies only cover requests that
// received a response.
type Report struct {
	Target      string
	Concurrency int
	Duration    time.Duration
	Total       int64
	Successful  int64
	Errors      int64
	StatusCodes map[int]int64

	Min    time.Duration
	Avg    time.Duration
	P50    time.Duration
	P90    time.Duration
	P95    time.Duration
	P99    time.Duration
	Max    time.Duration
	StdDev time.Duration
}

func (r *Report) ErrorRate() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(r.Errors) / float64(r.Total) * 100
}

func (r *Report) RequestsPerSecond() float64 {
	if r.Duration <= 0 {
		return 0
	}
	return float64(r.Total) / r.Duration.Seconds()
}

// Run sends search requests from cfg.Concurrency workers until
// cfg.Duration elapses or ctx is cancelled.
func Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.Concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be at least 1, got %d", cfg.Concurrency)
	}
	if cfg.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", cfg.Duration)
	}
	queries := cfg.Queries
	if len(queries) == 0 {
		queries = DefaultQueries
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 10
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout: 10 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        cfg.Concurrency * 2,
				MaxIdleConnsPerHost: cfg.Concurrency * 2,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	var limiter *rate.Limiter
	if cfg.Rate > 0 {
		burst := int(math.Ceil(cfg.Rate))
		limiter = rate.NewLimiter(rate.Limit(cfg.Rate), burst)
	}
	base := strings.TrimRight(cfg.BaseURL, "/")

	runCtx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	rec := newRecorder()
	start := time.Now()
	var wg sync.WaitGroup
	for w := 0; w < cfg.Concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for i := worker; ; i++ {
				if limiter != nil {
					if err := limiter.Wait(runCtx); err != nil {
						return
					}
				}
				if runCtx.Err() != nil {
					return
				}
				target := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					base, url.QueryEscape(queries[i%len(queries)]), limit)
				status, d, err := doRequest(runCtx, client, target)
				if err != nil && runCtx.Err() != nil {
					// Cut off by the deadline, not a server failure.
					return
				}
				rec.record(d, status, err)
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	report := rec.report()
	report.Target = base
	report.Concurrency = cfg.Concurrency
	report.Duration = elapsed
	slog.Debug("load test finished",
		"requests", report.Total,
		"errors", report.Errors,
		"duration_ms", elapsed.Milliseconds(),
	)
	return report, nil
}

func doRequest(ctx context.Context, client *http.Client, target string) (int, time.Duration, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, 0, err
	}
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, time.Since(start), err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func (r *recorder) report() *Report {
	r.mu.Lock()
	latencies := make([]time.Duration, len(r.latencies))
	copy(latencies, r.latencies)
	codes := make(map[int]int64, len(r.codes))
	for code, n := range r.codes {
		codes[code] = n
	}
	r.mu.Unlock()

	rep := &Report{
		Total:       r.total.Load(),
		Successful:  r.success.Load(),
		Errors:      r.failed.Load(),
		StatusCodes: codes,
	}
	if len(latencies) == 0 {
		return rep
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg := sum / time.Duration(len(latencies))
	var sq float64
	for _, l := range latencies {
		diff := float64(l) - float64(avg)
		sq += diff * diff
	}

	rep.Min = latencies[0]
	rep.Max = latencies[len(latencies)-1]
	rep.Avg = avg
	rep.P50 = percentile(latencies, 50)
	rep.P90 = percentile(latencies, 90)
	rep.P95 = percentile(latencies, 95)
	rep.P99 = percentile(latencies, 99)
	rep.StdDev = time.Duration(math.Sqrt(sq / float64(len(latencies))))
	return rep
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

// Print writes a human-readable summary of r to w.
func (r *Report) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Target:          %s\n", r.Target)
	fmt.Fprintf(w, "Concurrency:     %d\n", r.Concurrency)
	fmt.Fprintf(w, "Total Requests:  %d\n", r.Total)
	fmt.Fprintf(w, "Successful:      %d\n", r.Successful)
	fmt.Fprintf(w, "Errors:          %d\n", r.Errors)
	if r.Total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", r.ErrorRate())
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", r.RequestsPerSecond())
	}

	if r.Max > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", r.Min)
		fmt.Fprintf(w, "Avg:    %s\n", r.Avg)
		fmt.Fprintf(w, "P50:    %s\n", r.P50)
		fmt.Fprintf(w, "P90:    %s\n", r.P90)
		fmt.Fprintf(w, "P95:    %s\n", r.P95)
		fmt.Fprintf(w, "P99:    %s\n", r.P99)
		fmt.Fprintf(w, "Max:    %s\n", r.Max)
		fmt.Fprintf(w, "StdDev: %s\n", r.StdDev)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	codes := make([]int, 0, len(r.StatusCodes))
	for code := range r.StatusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, r.StatusCodes[code])
	}
	if r.Total == 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "WARNING: no requests completed. Is the server running?")
	}
}
