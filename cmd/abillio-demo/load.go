package main

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type LoadMetrics struct {
	TotalRequests      int
	SuccessfulRequests int
	FailedRequests     int
	TotalDuration      time.Duration
	AverageLatency     time.Duration
	MinLatency         time.Duration
	MaxLatency         time.Duration
	RequestsPerSecond  float64
	TotalLatency       time.Duration // Sum of all individual request latencies
}

type loadOptions struct {
	baseURL     string
	requests    int
	concurrency int
	lang        string
}

// newLoadCommand sends concurrent requests through the proxy routes of a running demo server.
// Every request is signed with its own nonce, so a run against the mock upstream also checks the signing path under load.
func newLoadCommand() *cobra.Command {
	opts := loadOptions{}

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Load test the proxy routes of a running demo server",
		Example: `  abillio-demo mock-upstream &
  ABILLIO_API_URL=http://localhost:8090 abillio-demo &
  abillio-demo load --requests 500 --concurrency 20`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.requests < 1 || opts.concurrency < 1 {
				return fmt.Errorf("--requests and --concurrency must be at least 1")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Starting load test with %d requests (%d concurrent)\n", opts.requests, opts.concurrency)
			fmt.Fprintf(out, "Target: %s/api/abillio/services\n", opts.baseURL)

			metrics := runLoadTest(cmd.Context(), out, opts)
			reportMetrics(out, metrics)

			if metrics.FailedRequests > 0 {
				return fmt.Errorf("%d requests failed", metrics.FailedRequests)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.baseURL, "base-url", "http://localhost:3000", "demo server URL")
	cmd.Flags().IntVarP(&opts.requests, "requests", "n", 100, "number of requests")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 10, "number of concurrent requests")
	cmd.Flags().StringVar(&opts.lang, "lang", "en", "lang query parameter")

	return cmd
}

func runLoadTest(ctx context.Context, out io.Writer, opts loadOptions) LoadMetrics {
	metrics := LoadMetrics{
		MinLatency: time.Hour,
	}
	var mu sync.Mutex

	client := &http.Client{
		Timeout: time.Minute,
		Transport: &http.Transport{
			MaxIdleConns:        opts.concurrency,
			MaxIdleConnsPerHost: opts.concurrency,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.concurrency)

	startTime := time.Now()

	for i := 0; i < opts.requests; i++ {
		g.Go(func() error {
			requestStart := time.Now()
			err := sendServicesRequest(ctx, client, opts, i)
			latency := time.Since(requestStart)

			mu.Lock()
			defer mu.Unlock()

			metrics.TotalRequests++
			if err != nil {
				metrics.FailedRequests++
				fmt.Fprintf(out, "Request %d failed: %v\n", i+1, err)
				return nil
			}
			metrics.SuccessfulRequests++

			// Update latency metrics
			if latency < metrics.MinLatency {
				metrics.MinLatency = latency
			}
			if latency > metrics.MaxLatency {
				metrics.MaxLatency = latency
			}
			metrics.TotalLatency += latency

			// Progress reporting every 50 requests
			if metrics.TotalRequests%50 == 0 {
				fmt.Fprintf(out, "%d/%d requests sent\n", metrics.TotalRequests, opts.requests)
			}
			return nil
		})
	}
	_ = g.Wait()

	metrics.TotalDuration = time.Since(startTime)
	if metrics.SuccessfulRequests > 0 {
		metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.SuccessfulRequests)
	} else {
		metrics.MinLatency = 0
	}
	metrics.RequestsPerSecond = float64(metrics.TotalRequests) / metrics.TotalDuration.Seconds()

	return metrics
}

// sendServicesRequest requests a random page of services through the proxy
func sendServicesRequest(ctx context.Context, client *http.Client, opts loadOptions, index int) error {
	url := fmt.Sprintf("%s/api/abillio/services?lang=%s&p=%d", strings.TrimRight(opts.baseURL, "/"), opts.lang, rand.Intn(3)+1)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("X-Request-ID", fmt.Sprintf("load-%d", index))

	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 1024))
		return fmt.Errorf("unexpected status code: %d, response: %s", res.StatusCode, body)
	}
	_, _ = io.Copy(io.Discard, res.Body)
	return nil
}

func reportMetrics(out io.Writer, metrics LoadMetrics) {
	separator := strings.Repeat("=", 60)
	fmt.Fprintln(out, "\n"+separator)
	fmt.Fprintln(out, "LOAD TEST RESULTS")
	fmt.Fprintln(out, separator)
	fmt.Fprintf(out, "Total Requests:      %d\n", metrics.TotalRequests)
	fmt.Fprintf(out, "Successful Requests: %d\n", metrics.SuccessfulRequests)
	fmt.Fprintf(out, "Failed Requests:     %d\n", metrics.FailedRequests)
	fmt.Fprintln(out, separator)
	fmt.Fprintln(out, "TIMING METRICS:")
	fmt.Fprintf(out, "Total Test Duration: %v\n", metrics.TotalDuration)
	fmt.Fprintf(out, "Average Latency:     %v\n", metrics.AverageLatency)
	fmt.Fprintf(out, "Min Latency:         %v\n", metrics.MinLatency)
	fmt.Fprintf(out, "Max Latency:         %v\n", metrics.MaxLatency)
	fmt.Fprintln(out, separator)
	fmt.Fprintf(out, "Requests/Second:     %.2f\n", metrics.RequestsPerSecond)
	fmt.Fprintln(out, separator)
}
