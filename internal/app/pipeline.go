// Package app wires the parsing, enrichment, statistics and
// summarization components into the operations the CLI exposes, and
// hosts the long-running worker orchestration.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/orbit-chat/orbit/internal/analysis"
	"github.com/orbit-chat/orbit/internal/chat"
	"github.com/orbit-chat/orbit/internal/config"
	"github.com/orbit-chat/orbit/internal/database"
	"github.com/orbit-chat/orbit/internal/enrich"
	"github.com/orbit-chat/orbit/internal/gemini"
	"github.com/orbit-chat/orbit/internal/insights"
	"github.com/orbit-chat/orbit/internal/jobs"
	"github.com/orbit-chat/orbit/internal/parser"
	"github.com/orbit-chat/orbit/internal/stats"
)

// Pipeline bridges the CLI commands to the analysis components. All
// operations persist their results so repeated queries read from the
// database instead of recomputing.
type Pipeline struct {
	logger   *slog.Logger
	cfg      *config.Config
	store    database.Store
	gen      gemini.Generator
	registry *jobs.Registry
	parser   *parser.Parser
	enricher *enrich.Enricher
}

// NewPipeline assembles a Pipeline. gen may be nil, which disables
// generated narratives in favor of the deterministic fallbacks.
func NewPipeline(logger *slog.Logger, cfg *config.Config, store database.Store, gen gemini.Generator, registry *jobs.Registry) *Pipeline {
	return &Pipeline{
		logger:   logger.With("component", "pipeline"),
		cfg:      cfg,
		store:    store,
		gen:      gen,
		registry: registry,
		parser:   parser.New(logger),
		enricher: enrich.New(logger),
	}
}

// ImportFile parses, enriches and stores a chat export file, returning
// the created upload. The upload ends in ready or failed status.
func (p *Pipeline) ImportFile(ctx context.Context, path string) (*database.Upload, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read export file: %w", err)
	}

	filename := filepath.Base(path)
	messages, platform, err := p.parser.Parse(filename, data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse export: %w", err)
	}

	p.enricher.EnrichAll(messages)

	upload := &database.Upload{
		Filename: filename,
		Platform: platform,
	}
	if p.cfg.Retention.UploadTTL > 0 {
		upload.ExpiresAt = time.Now().UTC().Add(p.cfg.Retention.UploadTTL)
	}
	if err := p.store.CreateUpload(ctx, upload); err != nil {
		return nil, err
	}

	rows := make([]*database.Message, 0, len(messages))
	for i, m := range messages {
		rows = append(rows, &database.Message{
			UploadID:       upload.ID,
			Seq:            i,
			SourceID:       m.ID,
			Sender:         m.Sender,
			Content:        m.Content,
			Timestamp:      m.Timestamp,
			Sentiment:      m.Sentiment,
			Classification: m.Classification,
			WeekID:         m.WeekID,
			MonthID:        m.MonthID,
			Year:           m.Year,
			WordCount:      m.WordCount,
		})
	}

	if err := p.store.SaveMessages(ctx, rows); err != nil {
		if statusErr := p.store.UpdateUploadStatus(ctx, upload.ID, database.UploadStatusFailed, 0); statusErr != nil {
			p.logger.ErrorContext(ctx, "Failed to mark upload as failed", "upload_id", upload.ID, "error", statusErr)
		}
		return nil, err
	}

	if err := p.store.UpdateUploadStatus(ctx, upload.ID, database.UploadStatusReady, len(rows)); err != nil {
		return nil, err
	}
	upload.Status = database.UploadStatusReady
	upload.MessageCount = len(rows)

	p.logger.InfoContext(ctx, "Export imported",
		"upload_id", upload.ID,
		"session_key", upload.SessionKey,
		"platform", platform,
		"messages", humanize.Comma(int64(len(rows))))
	return upload, nil
}

// loadMessages reads an upload's stored messages back into the
// in-memory form the analysis components consume.
func (p *Pipeline) loadMessages(ctx context.Context, uploadID int64) ([]*chat.Message, error) {
	rows, err := p.store.GetMessages(ctx, uploadID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("upload %d has no messages", uploadID)
	}

	messages := make([]*chat.Message, 0, len(rows))
	for _, r := range rows {
		messages = append(messages, &chat.Message{
			ID:             r.SourceID,
			Sender:         r.Sender,
			Content:        r.Content,
			Timestamp:      r.Timestamp,
			Sentiment:      r.Sentiment,
			Classification: r.Classification,
			WeekID:         r.WeekID,
			MonthID:        r.MonthID,
			Year:           r.Year,
			WordCount:      r.WordCount,
		})
	}
	return messages, nil
}

// ComputeStats builds the statistics report for an upload and persists
// it as the stats artifact.
func (p *Pipeline) ComputeStats(ctx context.Context, uploadID int64) (*stats.Report, error) {
	messages, err := p.loadMessages(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	report, err := stats.Compute(messages)
	if err != nil {
		return nil, err
	}

	if err := p.saveReport(ctx, uploadID, database.ReportKindStats, report); err != nil {
		return nil, err
	}
	return report, nil
}

// AnalyzeCards computes the four insight cards for an upload and
// persists them as the cards artifact.
func (p *Pipeline) AnalyzeCards(ctx context.Context, uploadID int64) (*analysis.Cards, error) {
	messages, err := p.loadMessages(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	report, err := stats.Compute(messages)
	if err != nil {
		return nil, err
	}

	engine := analysis.NewEngine(p.logger, p.gen, p.cfg.Analysis.SampleSize, p.cfg.Analysis.MaxContextChars)
	job := p.registry.Start(uploadID)
	defer p.registry.End(uploadID)

	cards := engine.AnalyzeFull(ctx, messages, report, job.Log)

	if err := p.saveReport(ctx, uploadID, database.ReportKindCards, cards); err != nil {
		return nil, err
	}
	return cards, nil
}

// DeepInsights runs the hierarchical summarization for an upload under
// the job registry, so concurrent log consumers can follow progress and
// a later request for the same upload supersedes this one. A cancelled
// run returns insights.ErrCancelled and persists nothing.
func (p *Pipeline) DeepInsights(ctx context.Context, uploadID int64) (*insights.Result, error) {
	messages, err := p.loadMessages(ctx, uploadID)
	if err != nil {
		return nil, err
	}

	job := p.registry.Start(uploadID)
	defer p.registry.End(uploadID)

	summarizer := insights.NewSummarizer(p.logger, p.gen)
	result, err := summarizer.Run(ctx, messages, job.Token, job.Log)
	if err != nil {
		if errors.Is(err, insights.ErrCancelled) {
			p.logger.InfoContext(ctx, "Deep insights run cancelled", "upload_id", uploadID)
		}
		return nil, err
	}

	if err := p.saveReport(ctx, uploadID, database.ReportKindInsights, result); err != nil {
		return nil, err
	}

	p.logger.InfoContext(ctx, "Deep insights computed",
		"upload_id", uploadID,
		"weeks", len(result.Weekly), "months", len(result.Monthly), "years", len(result.Yearly))
	return result, nil
}

// Registry exposes the job registry for cancellation and log streaming.
func (p *Pipeline) Registry() *jobs.Registry {
	return p.registry
}

func (p *Pipeline) saveReport(ctx context.Context, uploadID int64, kind string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s report: %w", kind, err)
	}
	return p.store.SaveReport(ctx, &database.Report{
		UploadID: uploadID,
		Kind:     kind,
		Payload:  string(encoded),
	})
}
