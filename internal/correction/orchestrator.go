package correction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrWong99/transcorrect/internal/observe"
	"github.com/MrWong99/transcorrect/internal/transcript"
	"github.com/MrWong99/transcorrect/internal/transcript/llmcorrect"
	"github.com/MrWong99/transcorrect/pkg/types"
)

const (
	defaultBatchSize       = 20
	defaultMaxRetries      = 2
	defaultTemperature     = 0.3
	defaultMaxTokens       = 16384
	defaultValidationDelay = 1 * time.Second
	defaultErrorDelay      = 2 * time.Second
)

// Sleeper waits for d or until ctx is done, whichever comes first, and
// returns ctx.Err() in the latter case.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default [Sleeper] backed by a timer.
func Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Orchestrator corrects transcript files block by block. It holds no
// per-file state and may be shared by concurrent runs over different files.
type Orchestrator struct {
	model       Model
	repo        Repository
	distributor *transcript.Distributor
	metrics     *observe.Metrics
	sleep       Sleeper

	systemPrompt    string
	batchSize       int
	maxRetries      int
	temperature     float64
	maxTokens       int
	validationDelay time.Duration
	errorDelay      time.Duration
}

// Option configures an [Orchestrator].
type Option func(*Orchestrator)

// WithBatchSize sets the number of segments per block. Values below 1 are
// ignored. Default 20.
func WithBatchSize(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithMaxRetries sets how many times a block is re-sent after a model error
// or a retryable validation issue. Negative values are ignored. Default 2.
func WithMaxRetries(n int) Option {
	return func(o *Orchestrator) {
		if n >= 0 {
			o.maxRetries = n
		}
	}
}

// WithTemperature sets the sampling temperature. Default 0.3.
func WithTemperature(t float64) Option {
	return func(o *Orchestrator) { o.temperature = t }
}

// WithMaxTokens sets the completion token budget per block. Default 16384.
func WithMaxTokens(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxTokens = n
		}
	}
}

// WithValidationDelay sets the pause before re-sending a block whose answer
// failed validation. Default 1s.
func WithValidationDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.validationDelay = d }
}

// WithErrorDelay sets the pause before re-sending a block after a model
// error, and between persistence attempts. Default 2s.
func WithErrorDelay(d time.Duration) Option {
	return func(o *Orchestrator) { o.errorDelay = d }
}

// WithSleeper replaces the function used to wait between retries.
func WithSleeper(s Sleeper) Option {
	return func(o *Orchestrator) {
		if s != nil {
			o.sleep = s
		}
	}
}

// WithDistributor sets the distributor that maps corrected text back onto
// segments. Default: a [transcript.Distributor] with default options. Each
// file runs on a [transcript.Distributor.Fork] of d, so d's own cache is
// never filled.
func WithDistributor(d *transcript.Distributor) Option {
	return func(o *Orchestrator) {
		if d != nil {
			o.distributor = d
		}
	}
}

// WithMetrics sets the metric instruments. Default [observe.DefaultMetrics].
func WithMetrics(m *observe.Metrics) Option {
	return func(o *Orchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// WithSystemPrompt replaces the instruction sent with every block. Default
// [llmcorrect.SystemPrompt].
func WithSystemPrompt(p string) Option {
	return func(o *Orchestrator) {
		if p != "" {
			o.systemPrompt = p
		}
	}
}

// New returns an Orchestrator that corrects with model and persists to repo.
func New(model Model, repo Repository, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		model:           model,
		repo:            repo,
		sleep:           Sleep,
		systemPrompt:    llmcorrect.SystemPrompt,
		batchSize:       defaultBatchSize,
		maxRetries:      defaultMaxRetries,
		temperature:     defaultTemperature,
		maxTokens:       defaultMaxTokens,
		validationDelay: defaultValidationDelay,
		errorDelay:      defaultErrorDelay,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.distributor == nil {
		o.distributor = transcript.NewDistributor()
	}
	if o.metrics == nil {
		o.metrics = observe.DefaultMetrics()
	}
	return o
}

// BatchSize returns the configured number of segments per block.
func (o *Orchestrator) BatchSize() int { return o.batchSize }

// CorrectFile corrects segments as file fileID. Blocks already stored as
// completed are reused without calling the model. Every other block is
// corrected, validated, retried as needed and persisted before the next one
// starts.
//
// Block failures never abort the run; they are reported through the block
// and file status. The returned error is non-nil only when ctx ends the run
// early, in which case the result holds the blocks finished so far.
func (o *Orchestrator) CorrectFile(ctx context.Context, fileID string, segments []types.TimedSegment) (*FileResult, error) {
	ctx, span := observe.StartSpan(ctx, "correction.file",
		trace.WithAttributes(
			attribute.String("file.id", fileID),
			attribute.Int("file.segments", len(segments)),
		),
	)
	defer span.End()

	o.metrics.ActiveFiles.Add(ctx, 1)
	defer o.metrics.ActiveFiles.Add(context.WithoutCancel(ctx), -1)

	log := observe.Logger(ctx).With(slog.String("file_id", fileID))

	total := (len(segments) + o.batchSize - 1) / o.batchSize
	done := o.completedBlocks(ctx, fileID, log)
	log.Info("correcting file",
		slog.Int("segments", len(segments)),
		slog.Int("blocks", total),
		slog.Int("already_completed", len(done)),
	)

	dist := o.distributor.Fork()
	defer dist.Aligner().Cache().Clear()

	blocks := make([]BlockResult, 0, total)
	for bi := range total {
		if err := ctx.Err(); err != nil {
			return o.abort(span, log, fileID, total, blocks, err)
		}

		if prev, ok := done[bi]; ok {
			log.Debug("reusing completed block", slog.Int("block", bi))
			o.metrics.RecordBlock(ctx, "reused")
			blocks = append(blocks, prev)
			continue
		}

		start := bi * o.batchSize
		end := min(start+o.batchSize, len(segments))
		res, err := o.correctBlock(ctx, log, dist, bi, segments[start:end])
		if err != nil {
			return o.abort(span, log, fileID, total, blocks, err)
		}
		o.persist(ctx, log, fileID, res)
		blocks = append(blocks, res)
	}

	result := summarize(fileID, total, blocks)
	span.SetAttributes(
		attribute.String("file.status", string(result.Status)),
		attribute.Int("file.completed_blocks", result.CompletedBlocks),
	)
	log.Info("file corrected",
		slog.Int("completed", result.CompletedBlocks),
		slog.Int("total", result.TotalBlocks),
		slog.String("success_rate", fmt.Sprintf("%.1f%%", result.SuccessRate)),
		slog.String("status", string(result.Status)),
	)
	return result, nil
}

func (o *Orchestrator) abort(span trace.Span, log *slog.Logger, fileID string, total int, blocks []BlockResult, err error) (*FileResult, error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	log.Warn("file correction interrupted",
		slog.Int("finished_blocks", len(blocks)),
		slog.Int("total", total),
		slog.Any("err", err),
	)
	return summarize(fileID, total, blocks), err
}

// completedBlocks loads the stored completed blocks of fileID keyed by index.
// A failing lookup is logged and treated as an empty store.
func (o *Orchestrator) completedBlocks(ctx context.Context, fileID string, log *slog.Logger) map[int]BlockResult {
	stored, err := o.repo.FindAll(ctx, fileID)
	if err != nil {
		log.Error("failed to load stored blocks, correcting from scratch", slog.Any("err", err))
		return nil
	}
	done := make(map[int]BlockResult, len(stored))
	for _, b := range stored {
		if b.Status == StatusCompleted {
			done[b.BlockIndex] = b
		}
	}
	return done
}

// correctBlock sends one block to the model until it gets an answer without
// retryable issues or retries run out. The only error it returns is ctx's.
func (o *Orchestrator) correctBlock(ctx context.Context, log *slog.Logger, dist *transcript.Distributor, index int, segs []types.TimedSegment) (BlockResult, error) {
	ctx, span := observe.StartSpan(ctx, "correction.block",
		trace.WithAttributes(attribute.Int("block.index", index)),
	)
	defer span.End()
	started := time.Now()
	log = log.With(slog.Int("block", index))

	texts := make([]string, len(segs))
	indices := make([]int, len(segs))
	for i, s := range segs {
		texts[i] = s.Text
		indices[i] = s.Index
	}
	batchText := strings.Join(texts, " ")

	var (
		answer     string
		validation llmcorrect.Validation
		lastErr    error
		attempt    int
	)
	for ; ; attempt++ {
		callStart := time.Now()
		out, err := o.model.Correct(ctx, o.systemPrompt, batchText, o.temperature, o.maxTokens)
		o.metrics.LLMDuration.Record(ctx, time.Since(callStart).Seconds())

		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return BlockResult{}, ctxErr
			}
			lastErr = err
			log.Warn("correction call failed",
				slog.Int("retry", attempt),
				slog.Int("max_retries", o.maxRetries),
				slog.Any("err", err),
			)
			if attempt >= o.maxRetries {
				break
			}
			o.metrics.RecordRetry(ctx, "error")
			if err := o.sleep(ctx, o.errorDelay); err != nil {
				return BlockResult{}, err
			}
			continue
		}

		lastErr = nil
		answer = out
		validation = llmcorrect.Validate(batchText, out)
		for _, is := range validation.Issues {
			o.metrics.RecordValidationIssue(ctx, string(is.Kind))
		}
		if len(validation.Issues) > 0 {
			log.Warn("validation issues",
				slog.Int("retry", attempt),
				slog.Int("max_retries", o.maxRetries),
				slog.Any("issues", validation.Messages()),
			)
		}
		if !validation.Retryable || attempt >= o.maxRetries {
			break
		}
		o.metrics.RecordRetry(ctx, "validation")
		if err := o.sleep(ctx, o.validationDelay); err != nil {
			return BlockResult{}, err
		}
	}

	res := BlockResult{
		BlockIndex:     index,
		SegmentIndices: indices,
		OriginalText:   batchText,
		RetryCount:     attempt,
		InputLength:    utf8.RuneCountInString(batchText),
	}
	if lastErr != nil {
		res.Status = StatusError
		res.Error = lastErr.Error()
		res.Alignments = []types.SegmentAlignment{}
		span.SetStatus(codes.Error, res.Error)
		log.Error("block failed", slog.Int("retries", attempt), slog.Any("err", lastErr))
	} else {
		res.Status = StatusCompleted
		res.CorrectedText = answer
		res.Alignments = dist.Distribute(segs, answer)
		res.ValidationIssues = validation.Messages()
		res.OutputLength = validation.OutputLength
		res.LengthRatio = validation.LengthRatio
		log.Info("block corrected",
			slog.Int("input_chars", res.InputLength),
			slog.Int("output_chars", res.OutputLength),
			slog.String("ratio", fmt.Sprintf("%.1f%%", res.LengthRatio*100)),
		)
	}

	o.metrics.RecordBlock(ctx, string(res.Status))
	o.metrics.BlockDuration.Record(ctx, time.Since(started).Seconds())
	span.SetAttributes(
		attribute.String("block.status", string(res.Status)),
		attribute.Int("block.retries", res.RetryCount),
	)
	return res, nil
}

// persist upserts r, retrying with the error delay. A block that cannot be
// stored is logged and dropped from storage; it is redone on the next run.
// The upsert itself ignores cancellation of ctx so that a finished block is
// not lost to a late cancel.
func (o *Orchestrator) persist(ctx context.Context, log *slog.Logger, fileID string, r BlockResult) {
	storeCtx := context.WithoutCancel(ctx)
	var err error
	for attempt := 0; ; attempt++ {
		if err = o.repo.Upsert(storeCtx, fileID, r); err == nil {
			return
		}
		if attempt >= o.maxRetries {
			break
		}
		log.Warn("persisting block failed, retrying",
			slog.Int("block", r.BlockIndex),
			slog.Int("retry", attempt),
			slog.Any("err", err),
		)
		if o.sleep(ctx, o.errorDelay) != nil {
			break
		}
	}
	o.metrics.PersistErrors.Add(storeCtx, 1)
	log.Error("failed to persist block", slog.Int("block", r.BlockIndex), slog.Any("err", err))
}

// Load assembles the stored result of fileID without calling the model. It
// returns nil, nil when nothing is stored for the file.
func (o *Orchestrator) Load(ctx context.Context, fileID string) (*FileResult, error) {
	blocks, err := o.repo.FindAll(ctx, fileID)
	if err != nil {
		return nil, fmt.Errorf("correction: load %q: %w", fileID, err)
	}
	if len(blocks) == 0 {
		return nil, nil
	}
	return summarize(fileID, len(blocks), blocks), nil
}
