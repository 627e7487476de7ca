package handler

import (
	"github.com/hitoshi/cookfeed/internal/auth"
	"github.com/hitoshi/cookfeed/internal/comment"
	"github.com/hitoshi/cookfeed/internal/feed"
	"github.com/hitoshi/cookfeed/internal/linkpreview"
	"github.com/hitoshi/cookfeed/internal/notification"
	"github.com/hitoshi/cookfeed/internal/post"
	"github.com/hitoshi/cookfeed/internal/repository"
	"github.com/hitoshi/cookfeed/internal/user"
)

// 各サービスがハンドラーのインターフェースを満たすことをコンパイル時に検証する。
var (
	_ AuthServiceInterface         = (*auth.Service)(nil)
	_ FeedServiceInterface         = (*feed.Service)(nil)
	_ PostServiceInterface         = (*post.Service)(nil)
	_ UserServiceInterface         = (*user.Service)(nil)
	_ CommentServiceInterface      = (*comment.Service)(nil)
	_ NotificationServiceInterface = (*notification.Service)(nil)
	_ LinkPreviewInterface         = (*linkpreview.Fetcher)(nil)

	_ ViewerResolver   = (repository.UserRepository)(nil)
	_ UsernameResolver = (repository.UserRepository)(nil)
)
