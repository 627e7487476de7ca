package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/user"
)

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	GetProfile(ctx context.Context, viewer *model.User, username string) (*user.Profile, error)
	UpdateProfile(ctx context.Context, userID string, params user.UpdateProfileParams) (*model.User, error)
	Follow(ctx context.Context, viewer *model.User, username string) error
	Unfollow(ctx context.Context, viewer *model.User, username string) error
	AddCloseFriend(ctx context.Context, viewer *model.User, username string) error
	RemoveCloseFriend(ctx context.Context, viewer *model.User, username string) error
	ListCloseFriends(ctx context.Context, viewer *model.User) ([]*model.User, error)
	Withdraw(ctx context.Context, userID string) error
}

// UserHandler はユーザー関連のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
	users   ViewerResolver
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface, users ViewerResolver) *UserHandler {
	return &UserHandler{
		service: service,
		users:   users,
	}
}

// profileResponse はプロフィール画面のレスポンス。
// restrictedがtrueの場合、フォロワー数等は閲覧者に公開されない。
type profileResponse struct {
	User           *userResponse `json:"user"`
	FollowerCount  int           `json:"follower_count"`
	FollowingCount int           `json:"following_count"`
	IsFollowing    bool          `json:"is_following"`
	Restricted     bool          `json:"restricted"`
}

// GetProfile はプロフィールを返す。
// GET /api/users/{username}
//
// 非公開アカウントを未フォローの閲覧者が見た場合もエラーにはせず、
// restricted付きの制限プロフィールを返す。
func (h *UserHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	viewer, err := resolveViewer(r, h.users)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	username := chi.URLParam(r, "username")
	profile, err := h.service.GetProfile(r.Context(), viewer, username)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, profileResponse{
		User:           newUserResponse(profile.User),
		FollowerCount:  profile.FollowerCount,
		FollowingCount: profile.FollowingCount,
		IsFollowing:    profile.IsFollowing,
		Restricted:     profile.Restricted,
	})
}

// updateProfileRequest はプロフィール更新のリクエストボディ。
// nilのフィールドは変更しない。
type updateProfileRequest struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
	Bio       *string `json:"bio"`
	AvatarURL *string `json:"avatar_url"`
	IsPrivate *bool   `json:"is_private"`
}

// UpdateProfile は自分のプロフィールを更新する。
// PUT /api/me/profile
func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	var req updateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handleServiceError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return
	}

	updated, err := h.service.UpdateProfile(r.Context(), viewer.ID, user.UpdateProfileParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Bio:       req.Bio,
		AvatarURL: req.AvatarURL,
		IsPrivate: req.IsPrivate,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, newUserResponse(updated))
}

// Follow は指定ユーザーをフォローする。
// POST /api/users/{username}/follow
func (h *UserHandler) Follow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.service.Follow(r.Context(), viewer, username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Unfollow は指定ユーザーのフォローを解除する。未フォローでも成功する。
// DELETE /api/users/{username}/follow
func (h *UserHandler) Unfollow(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.service.Unfollow(r.Context(), viewer, username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AddCloseFriend は指定ユーザーを親しい友達に追加する。
// POST /api/users/{username}/close-friend
func (h *UserHandler) AddCloseFriend(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.service.AddCloseFriend(r.Context(), viewer, username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// RemoveCloseFriend は指定ユーザーを親しい友達から外す。
// DELETE /api/users/{username}/close-friend
func (h *UserHandler) RemoveCloseFriend(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	username := chi.URLParam(r, "username")
	if err := h.service.RemoveCloseFriend(r.Context(), viewer, username); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// closeFriendListResponse は親しい友達一覧のレスポンス。
type closeFriendListResponse struct {
	Users []*userResponse `json:"users"`
}

// ListCloseFriends は自分の親しい友達一覧を返す。
// GET /api/me/close-friends
func (h *UserHandler) ListCloseFriends(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	friends, err := h.service.ListCloseFriends(r.Context(), viewer)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSONResponse(w, http.StatusOK, closeFriendListResponse{
		Users: newUserResponses(friends),
	})
}

// Withdraw は退会処理を実行し、セッションCookieをクリアする。
// DELETE /api/me
func (h *UserHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	if err := h.service.Withdraw(r.Context(), viewer.ID); err != nil {
		handleServiceError(w, err)
		return
	}

	// セッションはDB側で削除済みだが、Cookieもクリアする
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	slog.Info("user withdrawn", slog.String("user_id", viewer.ID))
	w.WriteHeader(http.StatusNoContent)
}
