// Command spycheck checks every server in an index against the lookup
// service and reports the ones the service has data for.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Sternrassler/spycheck/pkg/admission"
	"github.com/Sternrassler/spycheck/pkg/cache"
	"github.com/Sternrassler/spycheck/pkg/client"
	"github.com/Sternrassler/spycheck/pkg/fanout"
	"github.com/Sternrassler/spycheck/pkg/index"
	"github.com/Sternrassler/spycheck/pkg/logging"
	"github.com/Sternrassler/spycheck/pkg/metrics"
	"github.com/Sternrassler/spycheck/pkg/report"
	"github.com/Sternrassler/spycheck/pkg/tracing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// options is the run configuration assembled from flags and environment.
type options struct {
	concurrency  int
	indexPath    string
	format       string
	outputPath   string
	endpoint     string
	timeout      time.Duration
	sortByID     bool
	userAgent    string
	logLevel     string
	logPretty    bool
	redisURL     string
	cacheTTL     time.Duration
	metricsFile  string
	otlpEndpoint string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("spycheck", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&opts.concurrency, "concurrency", getEnvInt("SPYCHECK_CONCURRENCY", 1), "maximum number of lookups in flight")
	fs.IntVar(&opts.concurrency, "c", getEnvInt("SPYCHECK_CONCURRENCY", 1), "shorthand for -concurrency")
	fs.StringVar(&opts.indexPath, "index", getEnv("SPYCHECK_INDEX", "index.json"), "path to the id -> name index (.json, .yaml)")
	fs.StringVar(&opts.indexPath, "i", getEnv("SPYCHECK_INDEX", "index.json"), "shorthand for -index")
	fs.StringVar(&opts.format, "format", "plain", "report format: plain or json")
	fs.StringVar(&opts.format, "f", "plain", "shorthand for -format")
	fs.StringVar(&opts.outputPath, "output", "", "write the report to this file instead of stdout")
	fs.StringVar(&opts.outputPath, "o", "", "shorthand for -output")
	fs.StringVar(&opts.endpoint, "endpoint", getEnv("SPYCHECK_ENDPOINT", client.DefaultEndpoint), "lookup URL template, {id} is replaced by the server id")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-lookup timeout, 0 disables it")
	fs.BoolVar(&opts.sortByID, "sort", false, "sort the report by server id")
	fs.StringVar(&opts.userAgent, "user-agent", getEnv("USER_AGENT", client.DefaultUserAgent), "User-Agent header sent with every lookup")
	fs.StringVar(&opts.logLevel, "log-level", getEnv("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	fs.BoolVar(&opts.logPretty, "log-pretty", false, "human-readable console logs")
	fs.StringVar(&opts.redisURL, "redis-url", getEnv("REDIS_URL", ""), "Redis address or redis:// URL for the response cache, empty disables it")
	fs.DurationVar(&opts.cacheTTL, "cache-ttl", cache.DefaultTTL, "cache lifetime when a response carries no Expires header")
	fs.StringVar(&opts.metricsFile, "metrics-file", getEnv("SPYCHECK_METRICS_FILE", ""), "write Prometheus metrics to this file after the run")
	fs.StringVar(&opts.otlpEndpoint, "otlp-endpoint", getEnv("OTLP_ENDPOINT", ""), "OTLP/HTTP collector host:port, empty disables trace export")

	if err := fs.Parse(args); err != nil {
		return opts, err
	}
	if fs.NArg() > 0 {
		return opts, fmt.Errorf("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	if !logging.ValidLevel(opts.logLevel) {
		return opts, fmt.Errorf("invalid log level %q", opts.logLevel)
	}
	if opts.concurrency < 1 {
		return opts, fmt.Errorf("concurrency must be >= 1 (got %d)", opts.concurrency)
	}
	if opts.timeout < 0 {
		return opts, fmt.Errorf("timeout must be >= 0 (got %s)", opts.timeout)
	}
	return opts, nil
}

// run executes one check and returns the process exit code. Lookup failures
// do not change the exit code; setup errors and a failed report write do.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, err := parseFlags(args, stderr)
	if err != nil {
		if err != flag.ErrHelp {
			fmt.Fprintf(stderr, "spycheck: %v\n", err)
		}
		return exitUsage
	}

	logging.Setup(logging.Config{
		Level:  logging.LogLevel(opts.logLevel),
		Pretty: opts.logPretty,
		Output: stderr,
		RunID:  uuid.NewString(),
	})
	logger := logging.NewLogger("spycheck")

	format, err := report.ParseFormat(opts.format)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid report format")
		return exitUsage
	}

	idx, err := index.Load(opts.indexPath)
	if err != nil {
		logger.Error().Err(err).Str("path", opts.indexPath).Msg("Couldn't load index")
		return exitFatal
	}
	logger.Info().Int("servers", len(idx)).Str("path", opts.indexPath).Msg("Loaded index")

	cfg := client.DefaultConfig(opts.userAgent)
	cfg.Endpoint = opts.endpoint
	cfg.Timeout = opts.timeout
	cfg.CacheTTL = opts.cacheTTL

	if opts.redisURL != "" {
		redisClient, err := connectRedis(ctx, opts.redisURL)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to connect to Redis")
			return exitFatal
		}
		defer redisClient.Close()
		cfg.Cache = cache.NewManager(redisClient)
		logger.Info().Str("redis", opts.redisURL).Msg("Response cache enabled")
	}

	traceCfg := tracing.DefaultConfig()
	traceCfg.OTLPEndpoint = opts.otlpEndpoint
	shutdownTracing, err := tracing.Setup(ctx, traceCfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to set up tracing")
		return exitFatal
	}
	defer tracing.Shutdown(shutdownTracing, 5*time.Second)

	lookupClient, err := client.New(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Invalid client configuration")
		return exitFatal
	}

	// Opened last among the setup steps so a failed check never leaves an
	// empty report file behind.
	out, err := report.OpenOutput(opts.outputPath, stdout)
	if err != nil {
		logger.Error().Err(err).Msg("Couldn't open output")
		return exitFatal
	}

	pool := admission.NewPool(opts.concurrency)
	defer pool.Close()

	targets := make([]fanout.Target, len(idx))
	for i, e := range idx {
		targets[i] = fanout.Target{ID: e.ID, Name: e.Name}
	}

	start := time.Now()
	agg := fanout.NewSupervisor(lookupClient, pool).Run(ctx, targets)
	elapsed := time.Since(start)
	logger.Info().Dur("elapsed", elapsed).Msgf("Processing took %s", elapsed.Round(time.Millisecond))

	if opts.sortByID {
		agg.SortByID()
	}

	code := exitOK
	if err := writeReport(out, format, agg); err != nil {
		logger.Error().Err(err).Msg("Couldn't write to output")
		code = exitFatal
	}
	if err := report.WriteErrors(stderr, agg.Failures); err != nil {
		logger.Error().Err(err).Msg("Couldn't write error count")
	}

	if opts.metricsFile != "" {
		if err := metrics.WriteTextfile(opts.metricsFile); err != nil {
			logger.Warn().Err(err).Msg("Couldn't write metrics")
		}
	}

	return code
}

// writeReport renders agg into out and closes it. Close errors are returned
// like write errors.
func writeReport(out io.WriteCloser, format report.Format, agg fanout.Aggregate) error {
	if err := report.Render(out, format, agg); err != nil {
		out.Close()
		return fmt.Errorf("render report: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}

// connectRedis accepts either host:port or a redis:// URL and verifies the
// server is reachable.
func connectRedis(ctx context.Context, target string) (*redis.Client, error) {
	var opts *redis.Options
	if strings.Contains(target, "://") {
		parsed, err := redis.ParseURL(target)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		opts = &redis.Options{Addr: target}
	}

	redisClient := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		redisClient.Close()
		return nil, fmt.Errorf("ping %s: %w", opts.Addr, err)
	}
	return redisClient, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
