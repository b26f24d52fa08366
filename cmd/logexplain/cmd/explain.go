package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"logexplain/internal/batch"
	"logexplain/internal/config"
	explainerrors "logexplain/internal/errors"
	"logexplain/internal/ingestion"
	"logexplain/internal/llm"
	"logexplain/internal/logging"
	"logexplain/internal/models"
	"logexplain/internal/output"
	"logexplain/internal/parser"
	"logexplain/internal/prompt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// CompleterFactory builds the completion client for a resolved configuration.
type CompleterFactory func(cfg *config.Config, logger *zap.Logger) (llm.Completer, error)

// ExplainOptions holds options for the explain command.
type ExplainOptions struct {
	Path       string
	PerEntry   bool
	Follow     bool
	DryRun     bool
	ConfigFile string
	EnvFile    string
	Verbose    bool

	// Flags supplies explicitly set flags to the configuration chain.
	Flags *pflag.FlagSet

	// LookupEnv reads the process environment; nil means os.LookupEnv.
	LookupEnv config.LookupFunc

	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer

	// NewCompleter is only called when a completion is actually needed.
	NewCompleter CompleterFactory
}

// DefaultExplainOptions returns the default explain options.
func DefaultExplainOptions() *ExplainOptions {
	return &ExplainOptions{
		EnvFile:      ".env",
		NewCompleter: newOpenAICompleter,
	}
}

// flagKeys binds configuration keys to the flags that set them.
var flagKeys = map[string]string{
	config.KeyBaseURL:     "base-url",
	config.KeyModel:       "model",
	config.KeyLines:       "lines",
	config.KeyTemperature: "temperature",
	config.KeyMaxTokens:   "max-tokens",
	config.KeyTimeout:     "timeout",
	config.KeyFormat:      "format",
	config.KeyLogFile:     "log-file",
}

// bindExplainFlags registers the command's flags. Setting flags only feed the
// configuration chain; their defaults here are for help output.
func bindExplainFlags(cmd *cobra.Command, opts *ExplainOptions) {
	flags := cmd.Flags()

	flags.StringVarP(&opts.Path, "file", "f", "", "log file to read (default stdin, - for stdin)")
	flags.BoolVar(&opts.PerEntry, "per-entry", false, "explain each log entry individually")
	flags.BoolVar(&opts.Follow, "follow", false, "with --per-entry, follow the file for new lines (like tail -f)")
	flags.BoolVar(&opts.DryRun, "dry-run", false, "print the prompt instead of calling the API")
	flags.StringVar(&opts.ConfigFile, "config", "", "settings file (.yaml, .yml or .toml)")
	flags.StringVar(&opts.EnvFile, "env-file", opts.EnvFile, "dotenv file to read settings from (ignored if missing)")
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "enable debug diagnostics on stderr")

	flags.IntP("lines", "n", config.DefaultLines, "number of trailing non-blank lines to analyze")
	flags.StringP("model", "m", config.DefaultModel, "model to use")
	flags.Float32("temperature", config.DefaultTemperature, "sampling temperature")
	flags.Int("max-tokens", 0, fmt.Sprintf("max output tokens (0 = %d batch, %d per entry)",
		config.DefaultBatchMaxTokens, config.DefaultEntryMaxTokens))
	flags.Duration("timeout", config.DefaultTimeout, "timeout for each completion call")
	flags.String("base-url", "", "OpenAI-compatible API base URL")
	flags.String("format", string(output.FormatText), "output format: text or json")
	flags.String("log-file", "", "also write JSONL diagnostics to this rotating file")

	opts.Flags = flags
}

// ExplainRunner handles the explain workflow.
type ExplainRunner struct {
	options   *ExplainOptions
	config    *config.Config
	logger    *zap.Logger
	presenter *output.Presenter
	completer llm.Completer
	summary   output.Summary
	runID     string
}

// NewExplainRunner resolves configuration and sets up logging and output.
func NewExplainRunner(opts *ExplainOptions) (*ExplainRunner, error) {
	if opts == nil {
		opts = DefaultExplainOptions()
	}
	if opts.Follow && !opts.PerEntry {
		return nil, explainerrors.NewConfigValidationError("follow", true, "--follow requires --per-entry")
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		return nil, err
	}

	logCfg := logging.DefaultConfig().ForFile(cfg.LogFile)
	logCfg.Level = cfg.LogLevel
	if opts.Verbose {
		logCfg.Level = "debug"
	}
	logCfg.Output = opts.Stderr
	if err := logging.Setup(logCfg); err != nil {
		return nil, fmt.Errorf("failed to setup logging: %w", err)
	}

	runID := uuid.NewString()
	logger := logging.WithContext(runID, "explain")

	format, err := output.ParseFormat(cfg.Format)
	if err != nil {
		return nil, explainerrors.NewConfigValidationError(config.KeyFormat, cfg.Format, err.Error())
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = io.Discard
	}

	logger.Debug("config_resolved",
		zap.Stringer("config", cfg),
		zap.Any("origins", cfg.Origins),
	)

	return &ExplainRunner{
		options:   opts,
		config:    cfg,
		logger:    logger,
		presenter: output.NewPresenter(stdout, format),
		runID:     runID,
	}, nil
}

// resolveConfig builds the lookup chain: flag > env > env file > config file > default.
func resolveConfig(opts *ExplainOptions) (*config.Config, error) {
	envFile, err := config.LoadEnvFile(opts.EnvFile)
	if err != nil {
		return nil, err
	}

	chain := config.Chain{
		config.NewFlagSource(opts.Flags, flagKeys),
		config.NewEnvSource(opts.LookupEnv),
		envFile,
	}
	if opts.ConfigFile != "" {
		file, err := config.LoadFile(opts.ConfigFile)
		if err != nil {
			return nil, err
		}
		chain = append(chain, file)
	}
	chain = append(chain, config.Defaults())

	return config.Resolve(chain)
}

// Run executes the explain workflow.
func (r *ExplainRunner) Run(ctx context.Context) error {
	// The credential is checked before any input is read.
	if !r.options.DryRun {
		if !r.config.HasCredential() {
			return explainerrors.NewCredentialMissingError(config.CredentialEnv)
		}
		completer, err := r.options.NewCompleter(r.config, r.logger)
		if err != nil {
			return fmt.Errorf("failed to create completion client: %w", err)
		}
		r.completer = completer
	}

	src := ingestion.Open(r.options.Path, r.options.Follow, r.options.Stdin, r.logger)
	defer func() { _ = src.Close() }()

	r.logger = r.logger.With(logging.Source(src.Name()))
	r.logger.Info("explain_starting",
		logging.Model(r.config.Model),
		zap.Bool("per_entry", r.options.PerEntry),
		zap.Bool("follow", r.options.Follow),
		zap.Bool("dry_run", r.options.DryRun),
		zap.Int("lines", r.config.Lines),
	)

	var err error
	switch {
	case r.options.Follow:
		err = r.runFollow(ctx, src)
	case r.options.PerEntry:
		err = r.runPerEntry(ctx, src)
	default:
		err = r.runBatch(ctx, src)
	}

	if explainerrors.IsNoInput(err) {
		r.logger.Info("no_input")
		r.presenter.NoInput(src.Name())
		return r.presenter.Err()
	}
	if err != nil {
		r.logger.Debug("explain_failed", logging.ErrorCode(string(explainerrors.GetErrorCode(err))), errorField(err))
		return err
	}
	return r.presenter.Err()
}

// selectLines reads src and keeps the trailing window of non-blank lines.
func (r *ExplainRunner) selectLines(ctx context.Context, src ingestion.Source) ([]models.LogLine, error) {
	window := batch.NewWindow(r.config.Lines)
	err := src.Lines(ctx, func(line models.LogLine) error {
		window.Add(line)
		return nil
	})
	if err != nil {
		return nil, err
	}

	lines, err := window.Select(src.Name())
	r.logger.Debug("lines_selected",
		logging.Count(len(lines)),
		zap.Int("non_blank", window.Seen()),
	)
	return lines, err
}

// runBatch explains the selected window with a single completion. Any
// completion failure aborts the run.
func (r *ExplainRunner) runBatch(ctx context.Context, src ingestion.Source) error {
	lines, err := r.selectLines(ctx, src)
	if err != nil {
		return err
	}

	req := prompt.Request(r.config.Model, prompt.BuildBatch(lines), r.config.Temperature, r.config.MaxTokensFor(false))
	if r.options.DryRun {
		r.presenter.Prompt(req)
		return nil
	}

	result, err := r.complete(ctx, req)
	if err != nil {
		return err
	}

	r.presenter.Header(src.Name(), r.config.Model)
	r.presenter.Explanation(&models.Explanation{
		Source:      src.Name(),
		LineCount:   len(lines),
		Model:       r.config.Model,
		Text:        result.Text,
		GeneratedAt: time.Now().UTC(),
	})
	r.presenter.Footer(nil)
	return nil
}

// runPerEntry explains each selected line on its own. Parse and completion
// failures are reported inline and do not stop the run.
func (r *ExplainRunner) runPerEntry(ctx context.Context, src ingestion.Source) error {
	lines, err := r.selectLines(ctx, src)
	if err != nil {
		return err
	}

	if !r.options.DryRun {
		r.presenter.Header(src.Name(), r.config.Model)
	}
	for _, line := range lines {
		if err := r.explainEntry(ctx, line); err != nil {
			return err
		}
	}
	r.finishEntries()
	return nil
}

// runFollow explains lines as they are appended until ctx is cancelled.
// A file announces the run up front; stdin waits for its first non-blank
// line, and reports no input if it ends without one.
func (r *ExplainRunner) runFollow(ctx context.Context, src ingestion.Source) error {
	_, isFile := src.(*ingestion.FileSource)
	announced := r.options.DryRun
	if isFile && !announced {
		r.presenter.Header(src.Name(), r.config.Model)
		announced = true
	}

	entries := 0
	err := src.Lines(ctx, func(line models.LogLine) error {
		if batch.IsBlank(line.Text) {
			return nil
		}
		entries++
		if !announced {
			r.presenter.Header(src.Name(), r.config.Model)
			announced = true
		}
		return r.explainEntry(ctx, line)
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	r.logger.Info("follow_stopped", logging.Count(entries))
	if entries == 0 && !isFile {
		return explainerrors.NewNoInputError(src.Name())
	}
	r.finishEntries()
	return nil
}

func (r *ExplainRunner) finishEntries() {
	if r.options.DryRun {
		return
	}
	r.logger.Info("explain_complete",
		zap.Int("analyzed", r.summary.Analyzed),
		zap.Int("failed", r.summary.Failed),
		zap.Int("skipped", r.summary.Skipped),
	)
	r.presenter.Footer(&r.summary)
}

// explainEntry takes one line through Received → Parsed → Analyzed → Printed,
// or Received → ParseFailed → Skipped. Only cancellation is returned as an error.
func (r *ExplainRunner) explainEntry(ctx context.Context, line models.LogLine) error {
	result := models.NewEntryResult(line)
	logger := r.logger.With(logging.LineNumber(line.Number))

	entry, err := parser.ParseEntry(line)
	if err != nil {
		logger.Warn("entry_parse_failed", errorField(err))
		if err := result.Fail(models.StateParseFailed, err); err != nil {
			return err
		}
		if err := result.Advance(models.StateSkipped); err != nil {
			return err
		}
		r.emit(result)
		return nil
	}

	result.SetEntry(entry)
	logger = logger.With(logging.EntryLevel(entry.Level), zap.Timep("entry_time", entry.Timestamp))
	if err := result.Advance(models.StateParsed); err != nil {
		return err
	}

	msgs, err := prompt.BuildEntry(entry)
	if err != nil {
		return err
	}
	req := prompt.Request(r.config.Model, msgs, r.config.Temperature, r.config.MaxTokensFor(true))
	if r.options.DryRun {
		r.presenter.Prompt(req)
		return nil
	}

	completion, err := r.complete(ctx, req)
	switch {
	case err != nil && ctx.Err() != nil:
		return ctx.Err()
	case err != nil:
		logger.Warn("entry_analysis_failed",
			logging.ErrorCode(string(explainerrors.GetErrorCode(err))),
			errorField(err),
		)
		if err := result.Fail(models.StateAnalysisFailed, err); err != nil {
			return err
		}
	default:
		result.Explanation = completion.Text
		if err := result.Advance(models.StateAnalyzed); err != nil {
			return err
		}
	}

	if err := result.Advance(models.StatePrinted); err != nil {
		return err
	}
	r.emit(result)
	return nil
}

func (r *ExplainRunner) emit(result *models.EntryResult) {
	r.presenter.Entry(result)
	r.summary.Record(result)
}

// complete performs one completion call. The client owns the per-call deadline.
func (r *ExplainRunner) complete(ctx context.Context, req *models.CompletionRequest) (*models.CompletionResult, error) {
	start := time.Now()
	result, err := r.completer.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	r.logger.Debug("completion_succeeded",
		logging.Duration(time.Since(start)),
		logging.Tokens(result.PromptTokens, result.CompletionTokens),
	)
	return result, nil
}

// RunID returns the identifier attached to this run's diagnostics.
func (r *ExplainRunner) RunID() string {
	return r.runID
}

// Close releases resources.
func (r *ExplainRunner) Close() error {
	return logging.Close()
}

// RunExplainCommand executes the explain command with the given options.
func RunExplainCommand(ctx context.Context, opts *ExplainOptions) error {
	runner, err := NewExplainRunner(opts)
	if err != nil {
		return err
	}
	defer func() { _ = runner.Close() }()

	return runner.Run(ctx)
}

// errorField logs coded errors as their structured map.
func errorField(err error) zap.Field {
	var explainErr *explainerrors.ExplainError
	if errors.As(err, &explainErr) {
		return zap.Any("error", explainErr.ToMap())
	}
	return zap.Error(err)
}

func newOpenAICompleter(cfg *config.Config, logger *zap.Logger) (llm.Completer, error) {
	client, err := llm.NewClient(&llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Logger:  logger,
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}
