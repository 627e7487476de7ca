// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, post, social, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodePostNotFound      = "POST_NOT_FOUND"
	ErrCodePostForbidden     = "POST_FORBIDDEN"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeProfileForbidden  = "PROFILE_FORBIDDEN"
	ErrCodeSelfFollow        = "SELF_FOLLOW"
	ErrCodeSelfCloseFriend   = "SELF_CLOSE_FRIEND"
	ErrCodeDuplicateFollow   = "DUPLICATE_FOLLOW"
	ErrCodeInvalidVisibility = "INVALID_VISIBILITY"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeCommentNotFound   = "COMMENT_NOT_FOUND"
	ErrCodeNotPostOwner      = "NOT_POST_OWNER"
	ErrCodeInvalidURL        = "INVALID_URL"
	ErrCodeSSRFBlocked       = "SSRF_BLOCKED"
	ErrCodeFetchFailed       = "FETCH_FAILED"
)

// NewPostNotFoundError は投稿未検出エラーを生成する。
func NewPostNotFoundError(postID string) *APIError {
	return &APIError{
		Code:     ErrCodePostNotFound,
		Message:  fmt.Sprintf("指定された投稿が見つかりません: %s", postID),
		Category: "post",
		Action:   "投稿IDを確認してください。",
	}
}

// NewPostForbiddenError は投稿の閲覧権限がない場合のエラーを生成する。
// 非公開アカウント・公開範囲による拒否はすべてこのエラーに集約し、
// 投稿の存在有無を漏らさないようにする。
func NewPostForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodePostForbidden,
		Message:  "この投稿を閲覧する権限がありません。",
		Category: "post",
		Action:   "投稿者をフォローするか、投稿者に公開範囲を確認してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザー名を確認するか、ログインし直してください。",
	}
}

// NewProfileForbiddenError は非公開プロフィールの閲覧拒否エラーを生成する。
func NewProfileForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeProfileForbidden,
		Message:  "このアカウントは非公開です。",
		Category: "social",
		Action:   "フォローリクエストが承認されると閲覧できます。",
	}
}

// NewSelfFollowError は自己フォローエラーを生成する。
func NewSelfFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfFollow,
		Message:  "自分自身をフォローすることはできません。",
		Category: "social",
		Action:   "他のユーザーを指定してください。",
	}
}

// NewSelfCloseFriendError は自分自身を親しい友達に追加しようとした場合のエラーを生成する。
func NewSelfCloseFriendError() *APIError {
	return &APIError{
		Code:     ErrCodeSelfCloseFriend,
		Message:  "自分自身を親しい友達に追加することはできません。",
		Category: "social",
		Action:   "他のユーザーを指定してください。",
	}
}

// NewDuplicateFollowError は既にフォロー済みのユーザーを再度フォローしようとした場合のエラーを生成する。
func NewDuplicateFollowError() *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateFollow,
		Message:  "このユーザーは既にフォローしています。",
		Category: "social",
		Action:   "フォロー一覧を確認してください。",
	}
}

// NewInvalidVisibilityError は無効な公開範囲エラーを生成する。
func NewInvalidVisibilityError(visibility string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidVisibility,
		Message:  fmt.Sprintf("無効な公開範囲です: %s", visibility),
		Category: "validation",
		Action:   "公開範囲には public、followers、close_friends のいずれかを指定してください。",
	}
}

// NewInvalidRequestError はリクエスト不正エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	}
}

// NewCommentNotFoundError はコメント未検出エラーを生成する。
func NewCommentNotFoundError(commentID string) *APIError {
	return &APIError{
		Code:     ErrCodeCommentNotFound,
		Message:  fmt.Sprintf("指定されたコメントが見つかりません: %s", commentID),
		Category: "post",
		Action:   "コメントIDを確認してください。",
	}
}

// NewNotPostOwnerError は投稿の所有者以外による操作エラーを生成する。
func NewNotPostOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotPostOwner,
		Message:  "この操作は投稿の所有者のみが実行できます。",
		Category: "post",
		Action:   "自分の投稿に対してのみ実行してください。",
	}
}

// NewInvalidURLError は不正URLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("URLが不正です: %s", reason),
		Category: "validation",
		Action:   "URLの形式を確認してください。",
	}
}

// NewSSRFBlockedError はSSRF防止によりブロックされたURLのエラーを生成する。
func NewSSRFBlockedError() *APIError {
	return &APIError{
		Code:     ErrCodeSSRFBlocked,
		Message:  "このURLへのアクセスは許可されていません。",
		Category: "validation",
		Action:   "公開されているWebサイトのURLを指定してください。",
	}
}

// NewFetchFailedError はリンク先の取得失敗エラーを生成する。
func NewFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeFetchFailed,
		Message:  fmt.Sprintf("リンク先の取得に失敗しました: %s", reason),
		Category: "system",
		Action:   "時間をおいて再度お試しください。",
	}
}
