package preview

import (
	"errors"
	"time"

	"github.com/hitoshi/cookfeed/internal/model"
)

const (
	// initialBackoff はリトライの初回遅延（1秒）。
	initialBackoff = 1 * time.Second
	// maxBackoff はリトライの最大遅延（30秒）。
	maxBackoff = 30 * time.Second
	// defaultMaxAttempts はプレビュー取得の最大試行回数。
	defaultMaxAttempts = 3
)

// IsRetryable はプレビュー取得エラーがリトライ対象かを判定する。
// 一時的な取得失敗（FETCH_FAILED）のみリトライし、
// SSRFブロック・不正URLは何度試しても結果が変わらないためリトライしない。
func IsRetryable(err error) bool {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code == model.ErrCodeFetchFailed
	}
	return false
}

// CalculateBackoff は試行回数に基づいて指数バックオフ遅延を計算する。
// 初回1秒、2倍ずつ増加、最大30秒。
func CalculateBackoff(attempt int) time.Duration {
	delay := initialBackoff
	for i := 0; i < attempt; i++ {
		delay *= 2
		if delay > maxBackoff {
			return maxBackoff
		}
	}
	return delay
}
