package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"media-insight/internal/domain"
	"media-insight/internal/domain/model"
	"media-insight/internal/domain/ports/adapter"
	"media-insight/internal/domain/ports/repository"
	"media-insight/internal/infra/logging"
	"media-insight/internal/infra/metrics"
)

// PipelineWorker drains the job queue, running each claimed job through the
// fetch, transcribe, summarize and index stages. Stage position is derived
// from which result fields are already set, so a worker resuming a
// half-finished job skips completed work instead of redoing it.
type PipelineWorker struct {
	jobs        repository.JobRepository
	transcripts repository.TranscriptRepository
	summaries   repository.SummaryRepository
	fetcher     adapter.MediaFetcher
	transcriber adapter.Transcriber
	ai          adapter.AIServiceAdapter
	embedder    adapter.Embedder
	vectors     adapter.VectorStore

	chatModel    string
	chatParams   adapter.ChatParams
	pollInterval time.Duration
	log          *zerolog.Logger
}

func NewPipelineWorker(
	jobs repository.JobRepository,
	transcripts repository.TranscriptRepository,
	summaries repository.SummaryRepository,
	fetcher adapter.MediaFetcher,
	transcriber adapter.Transcriber,
	ai adapter.AIServiceAdapter,
	embedder adapter.Embedder,
	vectors adapter.VectorStore,
	chatModel string,
	chatParams adapter.ChatParams,
	pollInterval time.Duration,
	log *zerolog.Logger,
) *PipelineWorker {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &PipelineWorker{
		jobs:         jobs,
		transcripts:  transcripts,
		summaries:    summaries,
		fetcher:      fetcher,
		transcriber:  transcriber,
		ai:           ai,
		embedder:     embedder,
		vectors:      vectors,
		chatModel:    chatModel,
		chatParams:   chatParams,
		pollInterval: pollInterval,
		log:          log,
	}
}

// Run polls until ctx is cancelled, submitting claimed jobs to the pool.
func (w *PipelineWorker) Run(ctx context.Context, pool *Pool) {
	w.log.Info().Msg("pipeline worker started")
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("pipeline worker stopping")
			return
		case <-ticker.C:
			pool.Submit(func(ctx context.Context) error {
				w.ProcessOne(ctx)
				return nil
			})
		}
	}
}

// ProcessOne claims and runs at most one job. It reports whether a job
// was claimed.
func (w *PipelineWorker) ProcessOne(ctx context.Context) bool {
	job, err := w.jobs.ClaimNext(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.IncJobClaim("empty")
		} else {
			metrics.IncJobClaim("error")
			w.log.Error().Err(err).Msg("failed to claim job")
		}
		return false
	}
	metrics.IncJobClaim(claimOutcome(job))

	ctx = logging.WithJobID(ctx, job.ID)
	log := logging.With(ctx, w.log)
	log.Info().Str("url", job.URL).Msg("processing job")
	start := time.Now()

	err = w.runStages(ctx, job)
	if err != nil {
		if ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			// Shutdown interrupted the stage. The row stays running so a
			// worker re-claims it once the claim timestamp goes stale.
			log.Warn().Msg("shutdown interrupted job, leaving it claimable")
			return true
		}
		metrics.IncJobProcessed(string(model.JobStatusFailed))
		log.Error().Err(err).Msg("job failed")
		// The final write uses a background context so shutdown doesn't
		// leave the row stuck in running.
		if ferr := w.jobs.FinishFailed(context.Background(), job.ID, err.Error()); ferr != nil {
			log.Error().Err(ferr).Msg("failed to record job failure")
		}
		return true
	}

	job.Result.Merge(model.JobResult{Progress: 100, Stage: "done"})
	if ferr := w.jobs.FinishSuccess(context.Background(), job.ID, job.Result); ferr != nil {
		log.Error().Err(ferr).Msg("failed to record job success")
		return true
	}
	metrics.IncJobProcessed(string(model.JobStatusSuccess))
	log.Info().Dur("duration", time.Since(start)).Msg("job finished")
	return true
}

// claimOutcome distinguishes fresh claims from re-claims of abandoned work.
// Any checkpointed stage means a previous claimer already ran this job.
func claimOutcome(job *model.Job) string {
	if job.Result.Stage != "" {
		return "recovered"
	}
	return "claimed"
}

func (w *PipelineWorker) checkpoint(ctx context.Context, job *model.Job, patch model.JobResult) error {
	job.Result.Merge(patch)
	return w.jobs.Checkpoint(ctx, job.ID, patch, "")
}

func (w *PipelineWorker) runStages(ctx context.Context, job *model.Job) error {
	log := logging.With(ctx, w.log)

	// Fetch
	if !usableMediaPath(job.Result.MediaPath) {
		stageStart := time.Now()
		if err := w.checkpoint(ctx, job, model.JobResult{Progress: 10, Stage: "downloading"}); err != nil {
			return err
		}
		path, err := w.fetcher.Fetch(ctx, job.URL)
		metrics.ObserveStage("fetch", time.Since(stageStart), err == nil)
		if err != nil {
			return err
		}
		log.Info().Str("media_path", path).Msg("media downloaded")
		if err := w.checkpoint(ctx, job, model.JobResult{
			MediaPath: path,
			Basename:  filepath.Base(path),
			MediaURL:  job.URL,
			Progress:  30,
			Stage:     "downloaded",
		}); err != nil {
			return err
		}
	}

	// Transcribe
	var segments []model.Segment
	if job.Result.TranscriptID == "" {
		// A transcript for this media file may already exist from an earlier
		// job for the same URL; reuse it instead of calling ASR again.
		if tr, err := w.transcripts.FindLatestByMediaPath(ctx, nil, job.Result.MediaPath); err == nil && len(tr.Segments) > 0 {
			log.Info().Str("transcript_id", tr.ID).Msg("reusing existing transcript")
			segments = tr.Segments
			if err := w.checkpoint(ctx, job, model.JobResult{
				TranscriptID: tr.ID,
				SegmentCount: len(tr.Segments),
				Progress:     70,
				Stage:        "transcribed",
			}); err != nil {
				return err
			}
		}
	}
	if job.Result.TranscriptID == "" {
		stageStart := time.Now()
		if err := w.checkpoint(ctx, job, model.JobResult{Progress: 40, Stage: "transcribing"}); err != nil {
			return err
		}
		segs, err := w.transcriber.Transcribe(ctx, job.Result.MediaPath)
		metrics.ObserveStage("transcribe", time.Since(stageStart), err == nil)
		if err != nil {
			return err
		}
		tr := &model.Transcript{
			MediaPath: job.Result.MediaPath,
			Title:     titleFromPath(job.Result.MediaPath),
			Segments:  segs,
		}
		if err := w.transcripts.Save(ctx, nil, tr); err != nil {
			return err
		}
		segments = segs
		log.Info().Str("transcript_id", tr.ID).Int("segments", len(segs)).Msg("transcription saved")
		if err := w.checkpoint(ctx, job, model.JobResult{
			TranscriptID: tr.ID,
			SegmentCount: len(segs),
			Progress:     70,
			Stage:        "transcribed",
		}); err != nil {
			return err
		}
	} else {
		tr, err := w.transcripts.FindByID(ctx, nil, job.Result.TranscriptID)
		if err != nil {
			return err
		}
		segments = tr.Segments
	}

	// Summarize
	if job.Result.SummaryID == "" && len(segments) > 0 {
		stageStart := time.Now()
		if err := w.checkpoint(ctx, job, model.JobResult{Progress: 80, Stage: "summarizing"}); err != nil {
			return err
		}
		entries, err := summarizeSegments(ctx, w.ai, w.chatModel, w.chatParams, segments)
		metrics.ObserveStage("summarize", time.Since(stageStart), err == nil)
		if err != nil {
			return err
		}
		sum := &model.Summary{TranscriptID: job.Result.TranscriptID, Entries: entries}
		if err := w.summaries.Save(ctx, nil, sum); err != nil {
			return err
		}
		log.Info().Str("summary_id", sum.ID).Int("entries", len(entries)).Msg("summaries saved")
		if err := w.checkpoint(ctx, job, model.JobResult{
			SummaryID:    sum.ID,
			SummaryCount: len(entries),
			Progress:     95,
			Stage:        "summarized",
		}); err != nil {
			return err
		}
	}

	// Index. Failures never fail the job; the outcome is recorded instead.
	if job.Result.TranscriptID != "" && job.Result.SummaryID != "" && job.Result.IndexSynced == nil {
		stageStart := time.Now()
		err := w.index(ctx, job, segments)
		metrics.ObserveStage("index", time.Since(stageStart), err == nil)
		if err != nil {
			log.Warn().Err(err).Msg("vector index sync failed")
			if cerr := w.checkpoint(ctx, job, model.JobResult{
				IndexSynced: model.BoolPtr(false),
				IndexError:  err.Error(),
			}); cerr != nil {
				return cerr
			}
		} else {
			log.Info().Msg("vector index synced")
			if cerr := w.checkpoint(ctx, job, model.JobResult{
				IndexSynced: model.BoolPtr(true),
			}); cerr != nil {
				return cerr
			}
		}
	}

	return nil
}

func (w *PipelineWorker) index(ctx context.Context, job *model.Job, segments []model.Segment) error {
	sum, err := w.summaries.FindLatestByTranscript(ctx, nil, job.Result.TranscriptID)
	if err != nil {
		return err
	}
	points, docs := buildVectorPoints(job.Result.MediaPath, titleFromPath(job.Result.MediaPath), sum.Entries, segments)
	if len(points) == 0 {
		return nil
	}
	vectors, err := w.embedder.EmbedBatch(ctx, docs)
	if err != nil {
		return err
	}
	for i := range points {
		points[i].Vector = vectors[i]
	}
	return w.vectors.Store(ctx, points)
}

func usableMediaPath(path string) bool {
	if path == "" {
		return false
	}
	st, err := os.Stat(path)
	return err == nil && st.Size() > 0
}

func titleFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
