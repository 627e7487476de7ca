// Package privacy は投稿・プロフィールの可視性判定を提供する。
//
// 判定は二段構え: 非公開アカウントゲート（外側）と投稿ごとの公開範囲ゲート（内側）。
// 非公開アカウントの投稿は、投稿自体がpublicであっても非フォロワーには一切見えない。
// 判定はすべてfail-closed（未知の公開範囲・匿名閲覧者は拒否側に倒す）で、
// このパッケージ自身は例外的エラーを発生させない。伝播するのはデータストア層の
// エラーのみ。書き込み・外部呼び出しは行わない純粋な判定サービス。
package privacy

import (
	"context"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// Service は可視性判定サービス。状態を持たず、全メソッドは
// （データストアの内容、引数）の純粋関数として振る舞う。
type Service struct {
	relRepo repository.RelationRepository
}

// NewService はServiceを生成する。
func NewService(relRepo repository.RelationRepository) *Service {
	return &Service{relRepo: relRepo}
}

// IsPrivate はユーザーが非公開アカウントかどうかを返す。副作用のない純粋な述語。
func (s *Service) IsPrivate(user *model.User) bool {
	return user.PrivateAccount()
}

// IsFollower はviewerがauthorのフォロワーかどうかを返す。
// 可視性判定上、投稿者は常に自分自身のフォロワーとみなす。
// 匿名閲覧者は常にfalse。
func (s *Service) IsFollower(ctx context.Context, viewer *model.User, authorID string) (bool, error) {
	if !viewer.IsAuthenticated() {
		return false, nil
	}
	if viewer.ID == authorID {
		return true, nil
	}
	return s.relRepo.IsFollowing(ctx, viewer.ID, authorID)
}

// IsCloseFriend はviewerがauthorの親しい友達かどうかを返す。
// 投稿者は常に自分自身の親しい友達とみなす。匿名閲覧者は常にfalse。
func (s *Service) IsCloseFriend(ctx context.Context, viewer *model.User, authorID string) (bool, error) {
	if !viewer.IsAuthenticated() {
		return false, nil
	}
	if viewer.ID == authorID {
		return true, nil
	}
	return s.relRepo.IsCloseFriend(ctx, authorID, viewer.ID)
}

// CanViewProfile はviewerがauthorのプロフィールを閲覧できるかを返す。
// 公開アカウントは誰でも閲覧可能。非公開アカウントはフォロワー（と本人）のみ。
func (s *Service) CanViewProfile(ctx context.Context, viewer, author *model.User) (bool, error) {
	if !author.PrivateAccount() {
		return true, nil
	}
	return s.IsFollower(ctx, viewer, author.ID)
}

// CanViewPost はviewerがpostを閲覧できるかを返す。
// 判定順序:
//  1. 本人の投稿は公開範囲・非公開フラグによらず常に閲覧可能。
//  2. 投稿者が非公開アカウントで、viewerがフォロワーでなければ拒否。
//     投稿のvisibilityがpublicであってもこの外側ゲートが優先される。
//     親しい友達であってもフォロワーでなければこのゲートで拒否される
//     （エッジは独立しており、外側ゲートを迂回させない）。
//  3. 投稿のvisibilityで分岐。未知の値は拒否（fail-closed）。
func (s *Service) CanViewPost(ctx context.Context, viewer *model.User, post *model.RecipePost) (bool, error) {
	author := post.Author
	if viewer.IsAuthenticated() && viewer.ID == post.AuthorID {
		return true, nil
	}

	if author.PrivateAccount() {
		follower, err := s.IsFollower(ctx, viewer, post.AuthorID)
		if err != nil {
			return false, err
		}
		if !follower {
			return false, nil
		}
	}

	switch post.Visibility {
	case model.VisibilityPublic:
		return true, nil
	case model.VisibilityFollowers:
		return s.IsFollower(ctx, viewer, post.AuthorID)
	case model.VisibilityCloseFriends:
		return s.IsCloseFriend(ctx, viewer, post.AuthorID)
	default:
		return false, nil
	}
}

// FilterVisiblePosts は投稿集合をviewerが閲覧可能な部分集合に絞り込む。
// viewerの関係集合（フォロー中・親しい友達に指定されている投稿者）を
// 1回だけ読み込み、投稿ごとの個別クエリ（N+1）を行わずに判定する。
// 匿名閲覧者（nil）には「公開アカウントのpublic投稿」のみを返す。
// 入力の順序は保たれ、同一投稿の重複は除去される。
func (s *Service) FilterVisiblePosts(ctx context.Context, posts []*model.RecipePost, viewer *model.User) ([]*model.RecipePost, error) {
	var rel *repository.Relationships
	if viewer.IsAuthenticated() {
		var err error
		rel, err = s.relRepo.ViewerRelationships(ctx, viewer.ID)
		if err != nil {
			return nil, err
		}
	}

	seen := make(map[string]bool, len(posts))
	visible := make([]*model.RecipePost, 0, len(posts))
	for _, post := range posts {
		if seen[post.ID] {
			continue
		}
		if visibleTo(post, viewer, rel) {
			seen[post.ID] = true
			visible = append(visible, post)
		}
	}
	return visible, nil
}

// visibleTo は読み込み済みの関係集合に基づく単一投稿の可視性判定。
// CanViewPostと同じ二段ゲートをインメモリで評価する。
func visibleTo(post *model.RecipePost, viewer *model.User, rel *repository.Relationships) bool {
	if !viewer.IsAuthenticated() {
		// 匿名閲覧者: 公開アカウントのpublic投稿のみ。例外なし。
		return !post.Author.PrivateAccount() && post.Visibility == model.VisibilityPublic
	}

	isOwner := viewer.ID == post.AuthorID
	follows := isOwner || rel.Following[post.AuthorID]
	closeFriend := isOwner || rel.CloseFriendOf[post.AuthorID]

	// 外側ゲート: 非公開アカウントは本人かフォロワー以外に何も見せない
	profileGate := !post.Author.PrivateAccount() || isOwner || follows
	if !profileGate {
		return false
	}

	// 内側ゲート: 投稿の公開範囲
	if isOwner {
		return true
	}
	switch post.Visibility {
	case model.VisibilityPublic:
		return true
	case model.VisibilityFollowers:
		return follows
	case model.VisibilityCloseFriends:
		return closeFriend
	default:
		return false
	}
}
