// Package model はドメインモデルを定義する。
package model

import "time"

// Follow はフォロー関係（follower が author をフォローする有向エッジ）を表す。
// (FollowerID, AuthorID)はユニークで、自己フォローは禁止される。
type Follow struct {
	ID         string
	FollowerID string
	AuthorID   string
	CreatedAt  time.Time
}

// CloseFriend は親しい友達関係（owner が friend を指定する有向エッジ）を表す。
// (OwnerID, FriendID)はユニークで、自己指定は禁止される。
// 親しい友達はフォロワーとは独立したエッジであり、どちらか一方のみが成立しうる。
type CloseFriend struct {
	ID        string
	OwnerID   string
	FriendID  string
	CreatedAt time.Time
}

// Like はユーザーによる投稿へのいいねを表す。(UserID, PostID)はユニーク。
type Like struct {
	ID        string
	UserID    string
	PostID    string
	CreatedAt time.Time
}

// SavedPost はコレクションへの投稿保存を表す。(UserID, PostID)はユニーク。
// CollectionIDが空の場合はデフォルトコレクション（「保存済み」）への保存を表す。
type SavedPost struct {
	ID           string
	UserID       string
	PostID       string
	CollectionID string
	CreatedAt    time.Time
}

// NotificationType は通知の種別を表す。
type NotificationType string

const (
	// NotificationTypeLike はいいね通知。
	NotificationTypeLike NotificationType = "like"
	// NotificationTypeComment はコメント通知。
	NotificationTypeComment NotificationType = "comment"
	// NotificationTypeFollow はフォロー通知。
	NotificationTypeFollow NotificationType = "follow"
)

// Notification はユーザーへの通知レコードを表す。
// 配信（プッシュ等のファンアウト）は行わず、レコードの作成と一覧取得のみを扱う。
type Notification struct {
	ID          string
	RecipientID string
	ActorID     string
	Actor       *User
	Type        NotificationType
	PostID      string // いいね・コメント通知の対象投稿。フォロー通知では空。
	IsRead      bool
	CreatedAt   time.Time
}
