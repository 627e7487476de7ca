// Package preview はレシピ参照元URLのリンクプレビューを
// バックグラウンドで取得するワーカーを提供する。
// スケジューラ、ワーカー、リトライ戦略を含む。
package preview

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/cookfeed/internal/linkpreview"
	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// PreviewFetcher はリンクプレビュー取得のインターフェース。
// linkpreview.Fetcherを抽象化してテスタビリティを向上させる。
type PreviewFetcher interface {
	FetchPreview(ctx context.Context, pageURL string) (*linkpreview.Preview, error)
}

// Recorder はプレビュー取得メトリクス収集のインターフェース。nilの場合は記録しない。
type Recorder interface {
	RecordPreviewSuccess()
	RecordPreviewFailure(reason string)
	RecordPreviewLatency(duration time.Duration)
}

// Worker は個別投稿のプレビュー取得と保存を行う。
// 一時的な取得失敗は指数バックオフでリトライし、
// 恒久的な失敗（SSRFブロック等）やリトライ上限到達時は
// 空タイトルで取得済みとして記録し、再試行の対象から外す。
type Worker struct {
	postRepo    repository.PostRepository
	fetcher     PreviewFetcher
	logger      *slog.Logger
	metrics     Recorder
	maxAttempts int
	now         func() time.Time
	sleep       func(time.Duration)
}

// NewWorker はWorkerの新しいインスタンスを生成する。metricsはnilを許容する。
func NewWorker(
	postRepo repository.PostRepository,
	fetcher PreviewFetcher,
	logger *slog.Logger,
	metrics Recorder,
) *Worker {
	return &Worker{
		postRepo:    postRepo,
		fetcher:     fetcher,
		logger:      logger,
		metrics:     metrics,
		maxAttempts: defaultMaxAttempts,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Process は投稿の参照元URLからプレビューを取得し、結果を保存する。
// 成功・恒久失敗・リトライ上限のいずれでもpreview_fetched_atを記録するため、
// 同じ投稿が次のサイクルで再度選ばれることはない。
func (w *Worker) Process(ctx context.Context, post *model.RecipePost) error {
	start := time.Now()

	var preview *linkpreview.Preview
	var err error

	for attempt := 0; attempt < w.maxAttempts; attempt++ {
		if attempt > 0 {
			w.sleep(CalculateBackoff(attempt - 1))
		}

		preview, err = w.fetcher.FetchPreview(ctx, post.SourceURL)
		if err == nil {
			break
		}
		if !IsRetryable(err) {
			w.logger.Warn("プレビュー取得が恒久的に失敗しました",
				slog.String("post_id", post.ID),
				slog.String("source_url", post.SourceURL),
				slog.String("error", err.Error()),
			)
			w.recordFailure("permanent")
			return w.recordResult(ctx, post, "")
		}
		w.logger.Warn("プレビュー取得に失敗しました（リトライします）",
			slog.String("post_id", post.ID),
			slog.String("source_url", post.SourceURL),
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()),
		)
	}

	if err != nil {
		w.logger.Error("プレビュー取得がリトライ上限に達しました",
			slog.String("post_id", post.ID),
			slog.String("source_url", post.SourceURL),
			slog.Int("max_attempts", w.maxAttempts),
			slog.String("error", err.Error()),
		)
		w.recordFailure("retry_exhausted")
		return w.recordResult(ctx, post, "")
	}

	duration := time.Since(start)
	if w.metrics != nil {
		w.metrics.RecordPreviewSuccess()
		w.metrics.RecordPreviewLatency(duration)
	}
	w.logger.Info("プレビュー取得が完了しました",
		slog.String("post_id", post.ID),
		slog.String("source_url", post.SourceURL),
		slog.String("title", preview.Title),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return w.recordResult(ctx, post, preview.Title)
}

// recordFailure は失敗メトリクスを記録する。
func (w *Worker) recordFailure(reason string) {
	if w.metrics != nil {
		w.metrics.RecordPreviewFailure(reason)
	}
}

// recordResult は取得結果（失敗時は空タイトル）をpreview_fetched_atとともに保存する。
func (w *Worker) recordResult(ctx context.Context, post *model.RecipePost, title string) error {
	if err := w.postRepo.UpdateSourcePreview(ctx, post.ID, title, w.now()); err != nil {
		w.logger.Error("プレビュー結果の保存に失敗しました",
			slog.String("post_id", post.ID),
			slog.String("error", err.Error()),
		)
		return err
	}
	return nil
}
