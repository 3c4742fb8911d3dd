package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	lodelibrary "github.com/justapithecus/lode/lode"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap/zapcore"

	"github.com/pithecene-io/sluice/adapter"
	"github.com/pithecene-io/sluice/adapter/redis"
	"github.com/pithecene-io/sluice/adapter/webhook"
	"github.com/pithecene-io/sluice/cli/config"
	"github.com/pithecene-io/sluice/iox"
	"github.com/pithecene-io/sluice/journal"
	"github.com/pithecene-io/sluice/lode"
	"github.com/pithecene-io/sluice/log"
	"github.com/pithecene-io/sluice/metrics"
	"github.com/pithecene-io/sluice/policy"
	"github.com/pithecene-io/sluice/runtime"
	"github.com/pithecene-io/sluice/types"
)

// Exit codes of decode.
const (
	exitSuccess  = 0
	exitFailed   = 1
	exitCanceled = 2
	exitConfig   = 3
)

func outcomeToExitCode(status types.OutcomeStatus) int {
	switch status {
	case types.OutcomeSuccess, types.OutcomeTruncated:
		return exitSuccess
	case types.OutcomeCanceled:
		return exitCanceled
	default:
		return exitFailed
	}
}

// loadConfig reads the --config file, if any, and applies flag overrides,
// defaults and validation. Flags always win over file values.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg := &config.Config{}
	if path := c.String("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	overrideString(c, "storage-backend", &cfg.Storage.Backend)
	overrideString(c, "storage-path", &cfg.Storage.Path)
	overrideString(c, "storage-prefix", &cfg.Storage.Prefix)
	overrideString(c, "storage-region", &cfg.Storage.Region)
	overrideString(c, "storage-endpoint", &cfg.Storage.Endpoint)
	if c.IsSet("storage-s3-path-style") {
		cfg.Storage.S3PathStyle = c.Bool("storage-s3-path-style")
	}
	overrideString(c, "journal", &cfg.Journal)
	overrideString(c, "manifest", &cfg.Manifest)
	overrideString(c, "adapter", &cfg.Adapter.Type)
	overrideString(c, "adapter-url", &cfg.Adapter.URL)
	overrideString(c, "adapter-channel", &cfg.Adapter.Channel)
	overrideString(c, "log-level", &cfg.Log.Level)
	if c.IsSet("field-max") {
		cfg.Limits.FieldMax = c.Int("field-max")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func overrideString(c *cli.Context, flag string, dst *string) {
	if c.IsSet(flag) {
		*dst = c.String(flag)
	}
}

// cliLogger returns a printf-style logger for messages outside any request.
func cliLogger(w io.Writer) *log.SugaredLogger {
	return log.NewLoggerAt(nil, w, zapcore.InfoLevel).Sugar()
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

// pipeline holds everything shared by the requests of one invocation:
// the storage opener, the recorders and the name policy settings.
type pipeline struct {
	cfg       *config.Config
	opener    lode.Opener
	recorders runtime.MultiRecorder
	closers   []io.Closer
	names     policy.NameConfig
	level     zapcore.Level
	logOut    io.Writer
}

// buildPipeline wires storage and recorders from cfg. The caller must Close
// the pipeline.
func buildPipeline(ctx context.Context, cfg *config.Config, logOut io.Writer) (*pipeline, error) {
	names, err := cfg.NameConfig()
	if err != nil {
		return nil, err
	}
	level, err := log.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("log.level: %w", err)
	}

	opener, err := buildOpener(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	p := &pipeline{cfg: cfg, opener: opener, names: names, level: level, logOut: logOut}
	if err := p.addRecorders(); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

func buildOpener(ctx context.Context, sc config.StorageConfig) (lode.Opener, error) {
	switch sc.Backend {
	case lode.BackendFS:
		return lode.NewDirOpener(filepath.Join(sc.Path, sc.Prefix)), nil
	case lode.BackendLode:
		return lode.NewStoreOpener(lodelibrary.NewFSFactory(sc.Path), sc.Prefix), nil
	case lode.BackendS3:
		bucket, prefix := lode.ParseS3Path(sc.Path)
		return lode.NewS3Opener(ctx, lode.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       sc.Region,
			Endpoint:     sc.Endpoint,
			UsePathStyle: sc.S3PathStyle,
		}, sc.Prefix)
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s (must be fs, lode or s3)", sc.Backend)
	}
}

func (p *pipeline) addRecorders() error {
	if path := p.cfg.Journal; path != "" {
		j, err := journal.Open(path)
		if err != nil {
			return err
		}
		p.recorders = append(p.recorders, j)
		p.closers = append(p.closers, j)
	}

	if root := p.cfg.Manifest; root != "" {
		m, err := lode.NewManifestFS(root)
		if err != nil {
			return fmt.Errorf("failed to open manifest: %w", err)
		}
		p.recorders = append(p.recorders, m)
	}

	a, err := buildAdapter(p.cfg.Adapter)
	if err != nil {
		return fmt.Errorf("failed to create adapter: %w", err)
	}
	if a != nil {
		p.recorders = append(p.recorders, &runtime.AdapterRecorder{Adapter: a})
		p.closers = append(p.closers, a)
	}
	return nil
}

// buildAdapter returns nil when no adapter is configured.
func buildAdapter(ac config.AdapterConfig) (adapter.Adapter, error) {
	switch ac.Type {
	case "":
		return nil, nil
	case "webhook":
		retries := webhook.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return webhook.New(webhook.Config{
			URL:     ac.URL,
			Headers: ac.Headers,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
			Backoff: ac.Backoff.Duration,
		})
	case "redis":
		retries := redis.DefaultRetries
		if ac.Retries != nil {
			retries = *ac.Retries
		}
		return redis.New(redis.Config{
			URL:     ac.URL,
			Channel: ac.Channel,
			Timeout: ac.Timeout.Duration,
			Retries: retries,
			Backoff: ac.Backoff.Duration,
		})
	default:
		return nil, fmt.Errorf("unknown adapter type: %s (must be webhook or redis)", ac.Type)
	}
}

// Close closes recorders that hold resources.
func (p *pipeline) Close() error {
	var errs []error
	for _, c := range p.closers {
		errs = append(errs, c.Close())
	}
	p.closers = nil
	return errors.Join(errs...)
}

// requestConfig builds the configuration of one request. Each request gets
// its own name policy and collector so per-request statistics stay exact
// when requests run concurrently.
func (p *pipeline) requestConfig(meta *types.RequestMeta, src io.Reader, boundary string) (*runtime.RequestConfig, error) {
	names, err := policy.NewNamePolicy(p.names)
	if err != nil {
		return nil, err
	}
	return &runtime.RequestConfig{
		Source:    src,
		Boundary:  boundary,
		Meta:      meta,
		Form:      p.cfg.FormConfig(),
		FieldMax:  p.cfg.Limits.FieldMax,
		Names:     names,
		Opener:    p.opener,
		Recorders: p.recorders,
		Collector: metrics.NewCollector(p.opener.Backend(), meta.RequestID),
		Logger:    log.NewLoggerAt(meta, p.logOut, p.level),
	}, nil
}

// execute runs one request. encoding is the Content-Encoding of src.
func (p *pipeline) execute(ctx context.Context, meta *types.RequestMeta, src io.Reader, boundary, encoding string) (*runtime.RequestResult, error) {
	if encoding != "" {
		decoded, err := iox.NewDecodingReader(src, encoding)
		if err != nil {
			return nil, err
		}
		defer iox.DiscardClose(decoded)
		src = decoded
	}

	rc, err := p.requestConfig(meta, src, boundary)
	if err != nil {
		return nil, err
	}
	orchestrator, err := runtime.NewUploadOrchestrator(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	result, err := orchestrator.Execute(ctx)
	if err != nil {
		return nil, fmt.Errorf("execution failed: %w", err)
	}
	return result, nil
}
