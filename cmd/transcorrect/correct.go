package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/transcorrect/internal/config"
	"github.com/MrWong99/transcorrect/internal/correction"
	"github.com/MrWong99/transcorrect/internal/document"
	"github.com/MrWong99/transcorrect/internal/health"
	"github.com/MrWong99/transcorrect/internal/observe"
	"github.com/MrWong99/transcorrect/internal/resilience"
	"github.com/MrWong99/transcorrect/internal/transcript"
	"github.com/MrWong99/transcorrect/internal/transcript/llmcorrect"
)

type correctFlags struct {
	fileID      string
	outputDir   string
	resultsDir  string
	batchSize   int
	concurrency int
}

func newCorrectCmd(c *cli) *cobra.Command {
	var f correctFlags
	cmd := &cobra.Command{
		Use:   "correct [flags] <transcript.json>...",
		Short: "Correct one or more transcripts block by block",
		Long: `Correct one or more structured transcripts. Each file is identified by its
base name without extension unless --file-id is given. Block results are
persisted as they finish, so re-running an interrupted command only sends the
blocks that are not completed yet.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runCorrect(cmd, args, f)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.fileID, "file-id", "", "file ID to store results under (single input only)")
	fl.StringVarP(&f.outputDir, "output-dir", "o", "", "write <file-id>.corrected.json with completed blocks applied")
	fl.StringVar(&f.resultsDir, "results-dir", "", "write <file-id>.results.json with every block result")
	fl.IntVar(&f.batchSize, "batch-size", 0, "segments per block (overrides correction.batch_size)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "files corrected at once (overrides correction.concurrency)")
	return cmd
}

func (c *cli) runCorrect(cmd *cobra.Command, inputs []string, f correctFlags) error {
	ctx := cmd.Context()
	log := observe.Logger(ctx)

	if f.fileID != "" && len(inputs) > 1 {
		return errors.New("--file-id needs exactly one input")
	}
	if f.batchSize > 0 {
		c.cfg.Correction.BatchSize = f.batchSize
	}
	if f.concurrency > 0 {
		c.cfg.Correction.Concurrency = f.concurrency
	}
	for _, dir := range []string{f.outputDir, f.resultsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	docs := make(map[string]*document.Document, len(inputs))
	jobs := make([]correction.FileJob, 0, len(inputs))
	for _, path := range inputs {
		doc, err := readDocument(path)
		if err != nil {
			return err
		}
		id := f.fileID
		if id == "" {
			id = fileIDFromPath(path)
		}
		docs[id] = doc
		jobs = append(jobs, correction.FileJob{FileID: id, Segments: document.TimedSegments(doc)})
	}

	provider, err := buildLLM(c.cfg, c.registry)
	if err != nil {
		return err
	}
	repo, closeRepo, err := openStore(ctx, c.cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	c.addReadiness(health.Checker{Name: "llm", Check: func(context.Context) error {
		return llmReady(provider)
	}})
	if p, ok := repo.(interface{ Ping(context.Context) error }); ok {
		c.addReadiness(health.Checker{Name: "store", Check: p.Ping})
	}

	opts, err := orchestratorOptions(c.cfg.Correction)
	if err != nil {
		return err
	}
	opts = append(opts, correction.WithMetrics(c.metrics))
	orch := correction.New(llmcorrect.New(provider), repo, opts...)

	stopWatch := c.watchConfig()
	defer stopWatch()

	results, runErr := correction.RunFiles(ctx, orch, jobs, c.cfg.Correction.Concurrency)
	if results == nil {
		return runErr
	}

	for _, s := range provider.States() {
		if s.State != resilience.StateClosed {
			log.Warn("llm backend unhealthy at end of run", "backend", s.Name, "state", s.State.String())
		}
	}

	ids := make([]string, 0, len(results))
	for id := range results {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	for _, id := range ids {
		res := results[id]
		if f.resultsDir != "" {
			if err := writeResults(filepath.Join(f.resultsDir, id+".results.json"), res); err != nil {
				return err
			}
		}
		if f.outputDir != "" && runErr == nil {
			out := document.ApplyBlocks(docs[id], res.Blocks)
			if err := writeDocument(filepath.Join(f.outputDir, id+".corrected.json"), out); err != nil {
				return err
			}
		}
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tBLOCKS\tSUCCESS")
	for _, id := range ids {
		res := results[id]
		fmt.Fprintf(tw, "%s\t%s\t%d/%d\t%.1f%%\n", id, res.Status, res.CompletedBlocks, res.TotalBlocks, res.SuccessRate)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if runErr != nil {
		slog.Warn("run interrupted; completed blocks are stored and reused on the next run", "err", runErr)
		return fmt.Errorf("interrupted: %w", runErr)
	}
	return nil
}

// llmReady reports an error when every backend's circuit breaker is open.
func llmReady(f *resilience.LLMFallback) error {
	states := f.States()
	for _, s := range states {
		if s.State != resilience.StateOpen {
			return nil
		}
	}
	return fmt.Errorf("all %d llm backends are unavailable", len(states))
}

// orchestratorOptions translates the correction section into orchestrator
// options. Zero values keep the orchestrator defaults.
func orchestratorOptions(cc config.CorrectionConfig) ([]correction.Option, error) {
	policy, err := transcript.ParseInsertionPolicy(cc.InsertionPolicy)
	if err != nil {
		return nil, err
	}
	opts := []correction.Option{
		correction.WithDistributor(transcript.NewDistributor(transcript.WithInsertionPolicy(policy))),
		correction.WithBatchSize(cc.BatchSize),
		correction.WithMaxTokens(cc.MaxTokens),
	}
	if cc.MaxRetries != nil {
		opts = append(opts, correction.WithMaxRetries(*cc.MaxRetries))
	}
	if cc.Temperature != nil {
		opts = append(opts, correction.WithTemperature(*cc.Temperature))
	}
	if cc.ValidationDelay > 0 {
		opts = append(opts, correction.WithValidationDelay(cc.ValidationDelay))
	}
	if cc.ErrorDelay > 0 {
		opts = append(opts, correction.WithErrorDelay(cc.ErrorDelay))
	}
	if cc.SystemPromptFile != "" {
		prompt, err := os.ReadFile(cc.SystemPromptFile)
		if err != nil {
			return nil, fmt.Errorf("read system prompt: %w", err)
		}
		opts = append(opts, correction.WithSystemPrompt(string(prompt)))
	}
	return opts, nil
}
