package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/hitoshi/cookfeed/internal/middleware"
	"github.com/hitoshi/cookfeed/internal/model"
)

// ViewerResolver はセッションのユーザーIDから閲覧者を解決するインターフェース。
// repository.UserRepositoryの部分集合として定義する。
type ViewerResolver interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// resolveViewer はリクエストから閲覧者を解決する。
// セッションがない場合はnil（匿名閲覧者）を返す。セッションはあるが
// ユーザーが既に退会している場合も匿名として扱う。
func resolveViewer(r *http.Request, users ViewerResolver) (*model.User, error) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		return nil, nil
	}

	user, err := users.FindByID(r.Context(), userID)
	if err != nil {
		return nil, fmt.Errorf("閲覧者の取得に失敗しました: %w", err)
	}
	return user, nil
}

// requireViewer は認証済みの閲覧者を解決する。
// 匿名の場合は401レスポンスを書き込み、falseを返す。
func requireViewer(w http.ResponseWriter, r *http.Request, users ViewerResolver) (*model.User, bool) {
	viewer, err := resolveViewer(r, users)
	if err != nil {
		handleServiceError(w, err)
		return nil, false
	}
	if !viewer.IsAuthenticated() {
		writeUnauthorizedResponse(w)
		return nil, false
	}
	return viewer, true
}
