package preview

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// PostProcessorService はプレビュー取得の実行インターフェース。
type PostProcessorService interface {
	// Process は指定投稿のプレビューを取得し、結果を保存する。
	Process(ctx context.Context, post *model.RecipePost) error
}

// Scheduler はプレビュー取得のスケジューリングと並列制御を行う。
// 一定間隔のティッカーで未取得の投稿を取得し、
// semaphoreパターンで最大並列数を制御しながら取得を実行する。
type Scheduler struct {
	postRepo       repository.PostRepository
	processor      PostProcessorService
	logger         *slog.Logger
	maxConcurrency int
	batchSize      int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値10、
// batchSizeが0以下の場合はデフォルト値50を使用する。
func NewScheduler(
	postRepo repository.PostRepository,
	processor PostProcessorService,
	logger *slog.Logger,
	maxConcurrency int,
	batchSize int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	if batchSize <= 0 {
		batchSize = 50
	}
	return &Scheduler{
		postRepo:       postRepo,
		processor:      processor,
		logger:         logger,
		maxConcurrency: maxConcurrency,
		batchSize:      batchSize,
	}
}

// Start は指定間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("プレビュースケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("max_concurrency", s.maxConcurrency),
		slog.Int("batch_size", s.batchSize),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("プレビューサイクルの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("プレビュースケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("プレビューサイクルの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はプレビュー未取得の投稿を1回取得し、並列で取得を実行する。
// semaphoreパターンで最大並列数を制御する。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	start := time.Now()

	posts, err := s.postRepo.ListNeedingSourcePreview(ctx, s.batchSize)
	if err != nil {
		return err
	}

	if len(posts) == 0 {
		s.logger.Info("プレビュー取得対象の投稿はありません")
		return nil
	}

	s.logger.Info("プレビューサイクルを開始します",
		slog.Int("post_count", len(posts)),
	)

	// semaphoreパターンで並列数を制御
	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, post := range posts {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(p *model.RecipePost) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			if err := s.processor.Process(ctx, p); err != nil {
				s.logger.Error("投稿のプレビュー取得に失敗しました",
					slog.String("post_id", p.ID),
					slog.String("source_url", p.SourceURL),
					slog.String("error", err.Error()),
				)
			}
		}(post)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("プレビューサイクルが完了しました",
		slog.Int("post_count", len(posts)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}
