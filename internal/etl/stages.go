package etl

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bankcap/internal/config"
	"bankcap/internal/pipeline"
)

// Dependencies are the collaborators shared by the stages
type Dependencies struct {
	Fetcher  Fetcher
	Loader   *Loader
	Queries  QueryRunner
	Progress pipeline.ProgressLog
	Logger   *slog.Logger
}

// CrawlStage fetches the source page
type CrawlStage struct {
	pipeline.BaseStage
	fetcher Fetcher
	url     string
	logger  *slog.Logger
}

// NewCrawlStage creates the crawl stage
func NewCrawlStage(fetcher Fetcher, url string, logger *slog.Logger) *CrawlStage {
	return &CrawlStage{
		BaseStage: pipeline.NewBaseStage(pipeline.StageIDCrawl, pipeline.StageNameCrawl, nil),
		fetcher:   fetcher,
		url:       url,
		logger:    stageLogger(logger, pipeline.StageIDCrawl),
	}
}

// Execute fetches the page and hands it to extract
func (s *CrawlStage) Execute(ctx context.Context, in pipeline.Inputs) (any, error) {
	s.logger.InfoContext(ctx, "crawl_start", slog.String("run_id", in.RunID), slog.String("url", s.url))
	page, err := Crawl(ctx, s.fetcher, s.url)
	if err != nil {
		return nil, err
	}
	return page, nil
}

// ExtractStage parses the fetched page into records
type ExtractStage struct {
	pipeline.BaseStage
	opts     ExtractOptions
	progress pipeline.ProgressLog
	logger   *slog.Logger
}

// NewExtractStage creates the extract stage
func NewExtractStage(opts ExtractOptions, progress pipeline.ProgressLog, logger *slog.Logger) *ExtractStage {
	return &ExtractStage{
		BaseStage: pipeline.NewBaseStage(pipeline.StageIDExtract, pipeline.StageNameExtract, []string{pipeline.StageIDCrawl}),
		opts:      opts,
		progress:  progress,
		logger:    stageLogger(logger, pipeline.StageIDExtract),
	}
}

// Execute parses the table out of the crawled page
func (s *ExtractStage) Execute(ctx context.Context, in pipeline.Inputs) (any, error) {
	var page Page
	if err := in.Decode(pipeline.StageIDCrawl, &page); err != nil {
		return nil, err
	}

	records, err := ExtractPage(page, s.opts)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "extract_complete",
		slog.String("run_id", in.RunID),
		slog.String("selector", s.opts.Selector.String()),
		slog.Int("records", len(records)))
	note(ctx, s.progress, s.logger, in.RunID, "Data extraction complete. Initiating Transformation process")
	return records, nil
}

// TransformStage derives currency values from the raw metrics
type TransformStage struct {
	pipeline.BaseStage
	ratesPath string
	opts      TransformOptions
	progress  pipeline.ProgressLog
	logger    *slog.Logger
}

// NewTransformStage creates the transform stage
func NewTransformStage(ratesPath string, opts TransformOptions, progress pipeline.ProgressLog, logger *slog.Logger) *TransformStage {
	return &TransformStage{
		BaseStage: pipeline.NewBaseStage(pipeline.StageIDTransform, pipeline.StageNameTransform, []string{pipeline.StageIDExtract}),
		ratesPath: ratesPath,
		opts:      opts,
		progress:  progress,
		logger:    stageLogger(logger, pipeline.StageIDTransform),
	}
}

// Execute loads the rate table and transforms the extracted records
func (s *TransformStage) Execute(ctx context.Context, in pipeline.Inputs) (any, error) {
	var records []Record
	if err := in.Decode(pipeline.StageIDExtract, &records); err != nil {
		return nil, err
	}

	rates, err := LoadRates(s.ratesPath)
	if err != nil {
		return nil, err
	}

	out, err := Transform(records, rates, s.opts)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "transform_complete",
		slog.String("run_id", in.RunID),
		slog.Int("records", len(out)),
		slog.Any("currencies", s.opts.Currencies))
	note(ctx, s.progress, s.logger, in.RunID, "Data transformation complete. Initiating loading process")
	return out, nil
}

// LoadStage writes the transformed records to every sink
type LoadStage struct {
	pipeline.BaseStage
	loader   *Loader
	progress pipeline.ProgressLog
	logger   *slog.Logger
}

// NewLoadStage creates the load stage
func NewLoadStage(loader *Loader, progress pipeline.ProgressLog, logger *slog.Logger) *LoadStage {
	return &LoadStage{
		BaseStage: pipeline.NewBaseStage(pipeline.StageIDLoad, pipeline.StageNameLoad, []string{pipeline.StageIDTransform}),
		loader:    loader,
		progress:  progress,
		logger:    stageLogger(logger, pipeline.StageIDLoad),
	}
}

// Execute loads the records and returns a receipt for the query stage
func (s *LoadStage) Execute(ctx context.Context, in pipeline.Inputs) (any, error) {
	var records []Record
	if err := in.Decode(pipeline.StageIDTransform, &records); err != nil {
		return nil, err
	}

	receipt, err := s.loader.Load(ctx, records)
	if err != nil {
		return nil, err
	}
	note(ctx, s.progress, s.logger, in.RunID, "Data loaded to sinks. Running the queries")
	return receipt, nil
}

// QueryStage runs the fixed queries against the loaded table
type QueryStage struct {
	pipeline.BaseStage
	runner   QueryRunner
	queries  []Query
	progress pipeline.ProgressLog
	logger   *slog.Logger
}

// NewQueryStage creates the query stage
func NewQueryStage(runner QueryRunner, queries []Query, progress pipeline.ProgressLog, logger *slog.Logger) *QueryStage {
	return &QueryStage{
		BaseStage: pipeline.NewBaseStage(pipeline.StageIDQuery, pipeline.StageNameQuery, []string{pipeline.StageIDLoad}),
		runner:    runner,
		queries:   queries,
		progress:  progress,
		logger:    stageLogger(logger, pipeline.StageIDQuery),
	}
}

// Execute runs every query; individual query failures are part of the payload
func (s *QueryStage) Execute(ctx context.Context, in pipeline.Inputs) (any, error) {
	var receipt LoadReceipt
	if err := in.Decode(pipeline.StageIDLoad, &receipt); err != nil {
		return nil, err
	}

	results, err := RunQueries(ctx, s.runner, s.queries, func(msg string) {
		note(ctx, s.progress, s.logger, in.RunID, msg)
	})
	if err != nil {
		return nil, err
	}

	for _, r := range results {
		if r.Error != "" {
			s.logger.WarnContext(ctx, "query_failed",
				slog.String("run_id", in.RunID),
				slog.String("query", r.Name),
				slog.String("error", r.Error))
			continue
		}
		s.logger.InfoContext(ctx, "query_complete",
			slog.String("run_id", in.RunID),
			slog.String("query", r.Name),
			slog.String("sql", r.SQL),
			slog.Int("rows", len(r.Rows)))
	}
	return results, nil
}

// NewStages builds the five stages of the pipeline from configuration
func NewStages(cfg *config.Config, deps Dependencies) []pipeline.Stage {
	queries := DefaultQueries(cfg.Load.Table, "GBP")
	if !hasCurrency(cfg.Transform, "GBP") && len(cfg.Transform.Currencies) > 0 {
		queries = DefaultQueries(cfg.Load.Table, cfg.Transform.Currencies[0])
	}

	return []pipeline.Stage{
		NewCrawlStage(deps.Fetcher, cfg.Source.URL, deps.Logger),
		NewExtractStage(ExtractOptionsFromConfig(cfg.Source), deps.Progress, deps.Logger),
		NewTransformStage(cfg.Transform.RatesPath, TransformOptionsFromConfig(cfg.Transform), deps.Progress, deps.Logger),
		NewLoadStage(deps.Loader, deps.Progress, deps.Logger),
		NewQueryStage(deps.Queries, queries, deps.Progress, deps.Logger),
	}
}

// RegisterStages adds the pipeline stages to registry
func RegisterStages(registry *pipeline.Registry, cfg *config.Config, deps Dependencies) error {
	for _, stage := range NewStages(cfg, deps) {
		if err := registry.Register(stage); err != nil {
			return fmt.Errorf("register stage %s: %w", stage.ID(), err)
		}
	}
	return registry.Validate()
}

func hasCurrency(cfg config.TransformConfig, code string) bool {
	for _, c := range cfg.Currencies {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func stageLogger(logger *slog.Logger, stageID string) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return logger.With(slog.String("stage", stageID))
}

// note writes a run-scoped progress entry; progress may be nil
func note(ctx context.Context, progress pipeline.ProgressLog, logger *slog.Logger, runID, message string) {
	if progress == nil {
		return
	}
	if err := progress.Append(fmt.Sprintf("[%s] %s", runID, message)); err != nil {
		logger.WarnContext(ctx, "progress_log_write_failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()))
	}
}
