package privacy

import (
	"context"
	"testing"

	"github.com/hitoshi/cookfeed/internal/model"
	"github.com/hitoshi/cookfeed/internal/repository"
)

// --- テスト用モック ---

// mockRelationRepo はテスト用のRelationRepositoryモック。
type mockRelationRepo struct {
	viewerRelationshipsFn    func(ctx context.Context, viewerID string) (*repository.Relationships, error)
	isFollowingFn            func(ctx context.Context, followerID, authorID string) (bool, error)
	isCloseFriendFn          func(ctx context.Context, ownerID, friendID string) (bool, error)
	viewerRelationshipsCalls int
}

func (m *mockRelationRepo) ViewerRelationships(ctx context.Context, viewerID string) (*repository.Relationships, error) {
	m.viewerRelationshipsCalls++
	if m.viewerRelationshipsFn != nil {
		return m.viewerRelationshipsFn(ctx, viewerID)
	}
	return &repository.Relationships{
		Following:     map[string]bool{},
		CloseFriendOf: map[string]bool{},
	}, nil
}

func (m *mockRelationRepo) IsFollowing(ctx context.Context, followerID, authorID string) (bool, error) {
	if m.isFollowingFn != nil {
		return m.isFollowingFn(ctx, followerID, authorID)
	}
	return false, nil
}

func (m *mockRelationRepo) IsCloseFriend(ctx context.Context, ownerID, friendID string) (bool, error) {
	if m.isCloseFriendFn != nil {
		return m.isCloseFriendFn(ctx, ownerID, friendID)
	}
	return false, nil
}

func (m *mockRelationRepo) FollowedAuthorIDs(_ context.Context, _ string) ([]string, error) {
	return nil, nil
}

func (m *mockRelationRepo) CreateFollow(_ context.Context, _ *model.Follow) (bool, error) {
	return false, nil
}

func (m *mockRelationRepo) DeleteFollow(_ context.Context, _, _ string) error { return nil }

func (m *mockRelationRepo) ListFollowers(_ context.Context, _ string) ([]*model.User, error) {
	return nil, nil
}

func (m *mockRelationRepo) ListFollowing(_ context.Context, _ string) ([]*model.User, error) {
	return nil, nil
}

func (m *mockRelationRepo) CreateCloseFriend(_ context.Context, _ *model.CloseFriend) (bool, error) {
	return false, nil
}

func (m *mockRelationRepo) DeleteCloseFriend(_ context.Context, _, _ string) error { return nil }

func (m *mockRelationRepo) ListCloseFriends(_ context.Context, _ string) ([]*model.User, error) {
	return nil, nil
}

// --- テスト用ヘルパー ---

// repoWith は固定の関係集合を返すモックを生成する。
func repoWith(following, closeFriendOf map[string]bool) *mockRelationRepo {
	return &mockRelationRepo{
		viewerRelationshipsFn: func(_ context.Context, _ string) (*repository.Relationships, error) {
			return &repository.Relationships{Following: following, CloseFriendOf: closeFriendOf}, nil
		},
		isFollowingFn: func(_ context.Context, followerID, authorID string) (bool, error) {
			return following[authorID], nil
		},
		isCloseFriendFn: func(_ context.Context, ownerID, friendID string) (bool, error) {
			return closeFriendOf[ownerID], nil
		},
	}
}

func publicAuthor(id string) *model.User {
	return &model.User{ID: id, Username: "user-" + id}
}

func privateAuthor(id string) *model.User {
	return &model.User{ID: id, Username: "user-" + id, IsPrivate: true}
}

func postBy(id string, author *model.User, visibility model.Visibility) *model.RecipePost {
	return &model.RecipePost{
		ID:         id,
		AuthorID:   author.ID,
		Author:     author,
		Visibility: visibility,
	}
}

// --- CanViewPost テスト ---

// TestCanViewPost_OwnerAlwaysSees は投稿者本人が公開範囲・非公開フラグに
// よらず常に自分の投稿を閲覧できることをテストする。
func TestCanViewPost_OwnerAlwaysSees(t *testing.T) {
	author := privateAuthor("a1")
	post := postBy("p1", author, model.VisibilityCloseFriends)

	svc := NewService(&mockRelationRepo{})
	got, err := svc.CanViewPost(context.Background(), &model.User{ID: "a1"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if !got {
		t.Error("owner should always see own post")
	}
}

// TestCanViewPost_PublicPostPublicAuthor は公開アカウントのpublic投稿が
// 匿名閲覧者を含む全員に見えることをテストする。
func TestCanViewPost_PublicPostPublicAuthor(t *testing.T) {
	post := postBy("p1", publicAuthor("a1"), model.VisibilityPublic)
	svc := NewService(&mockRelationRepo{})

	for _, viewer := range []*model.User{nil, {ID: "stranger"}} {
		got, err := svc.CanViewPost(context.Background(), viewer, post)
		if err != nil {
			t.Fatalf("CanViewPost returned error: %v", err)
		}
		if !got {
			t.Errorf("viewer %v should see public post of public author", viewer)
		}
	}
}

// TestCanViewPost_PrivateAuthorOuterGate は非公開アカウントの投稿が、
// 投稿自体がpublicであっても非フォロワーには見えないことをテストする。
func TestCanViewPost_PrivateAuthorOuterGate(t *testing.T) {
	post := postBy("p1", privateAuthor("a1"), model.VisibilityPublic)

	// 非フォロワー: 外側ゲートで拒否
	svc := NewService(&mockRelationRepo{})
	got, err := svc.CanViewPost(context.Background(), &model.User{ID: "stranger"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if got {
		t.Error("non-follower should not see private author's post even when post is public")
	}

	// 匿名閲覧者も同様に拒否
	got, err = svc.CanViewPost(context.Background(), nil, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if got {
		t.Error("anonymous viewer should not see private author's post")
	}

	// フォロワー: 通過
	svc = NewService(repoWith(map[string]bool{"a1": true}, nil))
	got, err = svc.CanViewPost(context.Background(), &model.User{ID: "follower"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if !got {
		t.Error("follower should see private author's public post")
	}
}

// TestCanViewPost_FollowersVisibility はfollowers投稿がフォロワーのみに
// 見えることをテストする。
func TestCanViewPost_FollowersVisibility(t *testing.T) {
	post := postBy("p1", publicAuthor("a1"), model.VisibilityFollowers)

	svc := NewService(repoWith(map[string]bool{"a1": true}, nil))
	got, err := svc.CanViewPost(context.Background(), &model.User{ID: "follower"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if !got {
		t.Error("follower should see followers-only post")
	}

	svc = NewService(&mockRelationRepo{})
	got, err = svc.CanViewPost(context.Background(), &model.User{ID: "stranger"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if got {
		t.Error("non-follower should not see followers-only post")
	}
}

// TestCanViewPost_CloseFriendsVisibility はclose_friends投稿が親しい友達のみに
// 見えることをテストする。親しい友達エッジはフォローと独立である。
func TestCanViewPost_CloseFriendsVisibility(t *testing.T) {
	post := postBy("p1", publicAuthor("a1"), model.VisibilityCloseFriends)

	// 公開アカウントの投稿者なら、フォローしていない親しい友達にも見える
	svc := NewService(repoWith(nil, map[string]bool{"a1": true}))
	got, err := svc.CanViewPost(context.Background(), &model.User{ID: "friend"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if !got {
		t.Error("close friend should see close-friends post of public author")
	}

	// フォロワーであっても親しい友達でなければ見えない
	svc = NewService(repoWith(map[string]bool{"a1": true}, nil))
	got, err = svc.CanViewPost(context.Background(), &model.User{ID: "follower"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if got {
		t.Error("plain follower should not see close-friends post")
	}
}

// TestCanViewPost_CloseFriendDoesNotBypassOuterGate は非公開アカウントの
// 親しい友達であってもフォロワーでなければ外側ゲートで拒否されることをテストする。
func TestCanViewPost_CloseFriendDoesNotBypassOuterGate(t *testing.T) {
	post := postBy("p1", privateAuthor("a1"), model.VisibilityCloseFriends)

	svc := NewService(repoWith(nil, map[string]bool{"a1": true}))
	got, err := svc.CanViewPost(context.Background(), &model.User{ID: "friend"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if got {
		t.Error("close friend who is not a follower should be blocked by the account gate")
	}
}

// TestCanViewPost_UnknownVisibilityDenied は未知の公開範囲が拒否側に
// 倒れることをテストする。
func TestCanViewPost_UnknownVisibilityDenied(t *testing.T) {
	post := postBy("p1", publicAuthor("a1"), model.Visibility("secret"))

	svc := NewService(&mockRelationRepo{})
	got, err := svc.CanViewPost(context.Background(), &model.User{ID: "stranger"}, post)
	if err != nil {
		t.Fatalf("CanViewPost returned error: %v", err)
	}
	if got {
		t.Error("unknown visibility should be denied")
	}
}

// --- CanViewProfile テスト ---

// TestCanViewProfile は公開アカウントが全員に、非公開アカウントが
// フォロワーと本人のみに見えることをテストする。
func TestCanViewProfile(t *testing.T) {
	svc := NewService(repoWith(map[string]bool{"a-private": true}, nil))

	tests := []struct {
		name   string
		viewer *model.User
		author *model.User
		want   bool
	}{
		{"公開アカウントは匿名にも見える", nil, publicAuthor("a-public"), true},
		{"公開アカウントは誰にでも見える", &model.User{ID: "stranger"}, publicAuthor("a-public"), true},
		{"非公開アカウントはフォロワーに見える", &model.User{ID: "follower"}, privateAuthor("a-private"), true},
		{"非公開アカウントは本人に見える", &model.User{ID: "a-hidden"}, privateAuthor("a-hidden"), true},
		{"非公開アカウントは匿名に見えない", nil, privateAuthor("a-hidden"), false},
		{"非公開アカウントは非フォロワーに見えない", &model.User{ID: "stranger"}, privateAuthor("a-hidden"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.CanViewProfile(context.Background(), tt.viewer, tt.author)
			if err != nil {
				t.Fatalf("CanViewProfile returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("CanViewProfile = %v, want %v", got, tt.want)
			}
		})
	}
}

// --- FilterVisiblePosts テスト ---

// TestFilterVisiblePosts_AnonymousSeesPublicOnly は匿名閲覧者が
// 公開アカウントのpublic投稿のみを受け取ることをテストする。
func TestFilterVisiblePosts_AnonymousSeesPublicOnly(t *testing.T) {
	posts := []*model.RecipePost{
		postBy("p1", publicAuthor("a1"), model.VisibilityPublic),
		postBy("p2", publicAuthor("a1"), model.VisibilityFollowers),
		postBy("p3", privateAuthor("a2"), model.VisibilityPublic),
	}

	repo := &mockRelationRepo{}
	svc := NewService(repo)
	got, err := svc.FilterVisiblePosts(context.Background(), posts, nil)
	if err != nil {
		t.Fatalf("FilterVisiblePosts returned error: %v", err)
	}

	if len(got) != 1 || got[0].ID != "p1" {
		t.Errorf("visible posts = %d, want only p1", len(got))
	}
	if repo.viewerRelationshipsCalls != 0 {
		t.Errorf("ViewerRelationships calls = %d, want 0 for anonymous viewer", repo.viewerRelationshipsCalls)
	}
}

// TestFilterVisiblePosts_LoadsRelationshipsOnce は投稿数によらず関係集合の
// 読み込みが1回で済むことをテストする（N+1の回避）。
func TestFilterVisiblePosts_LoadsRelationshipsOnce(t *testing.T) {
	author := publicAuthor("a1")
	posts := make([]*model.RecipePost, 50)
	for i := range posts {
		posts[i] = postBy(string(rune('a'+i%26))+string(rune('0'+i/26)), author, model.VisibilityPublic)
	}

	repo := repoWith(nil, nil)
	svc := NewService(repo)
	if _, err := svc.FilterVisiblePosts(context.Background(), posts, &model.User{ID: "viewer-1"}); err != nil {
		t.Fatalf("FilterVisiblePosts returned error: %v", err)
	}

	if repo.viewerRelationshipsCalls != 1 {
		t.Errorf("ViewerRelationships calls = %d, want 1", repo.viewerRelationshipsCalls)
	}
}

// TestFilterVisiblePosts_TwoGates は外側ゲート（非公開アカウント）と
// 内側ゲート（投稿の公開範囲）の組み合わせを一括フィルタでテストする。
func TestFilterVisiblePosts_TwoGates(t *testing.T) {
	followedPrivate := privateAuthor("a-followed-private")
	unfollowedPrivate := privateAuthor("a-unfollowed-private")
	open := publicAuthor("a-open")

	posts := []*model.RecipePost{
		postBy("p1", followedPrivate, model.VisibilityPublic),         // 外側通過、public → 可視
		postBy("p2", followedPrivate, model.VisibilityFollowers),      // 外側通過、フォロワー → 可視
		postBy("p3", followedPrivate, model.VisibilityCloseFriends),   // 親しい友達でない → 不可視
		postBy("p4", unfollowedPrivate, model.VisibilityPublic),       // 外側ゲートで拒否
		postBy("p5", open, model.VisibilityPublic),                    // 可視
		postBy("p6", open, model.VisibilityFollowers),                 // フォローしていない → 不可視
		postBy("p7", open, model.VisibilityCloseFriends),              // 親しい友達 → 可視
		postBy("p8", unfollowedPrivate, model.VisibilityCloseFriends), // 親しい友達だが外側ゲートで拒否
	}

	repo := repoWith(
		map[string]bool{"a-followed-private": true},
		map[string]bool{"a-open": true, "a-unfollowed-private": true},
	)
	svc := NewService(repo)
	got, err := svc.FilterVisiblePosts(context.Background(), posts, &model.User{ID: "viewer-1"})
	if err != nil {
		t.Fatalf("FilterVisiblePosts returned error: %v", err)
	}

	want := []string{"p1", "p2", "p5", "p7"}
	if len(got) != len(want) {
		ids := make([]string, len(got))
		for i, p := range got {
			ids[i] = p.ID
		}
		t.Fatalf("visible posts = %v, want %v", ids, want)
	}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("visible[%d] = %q, want %q", i, got[i].ID, id)
		}
	}
}

// TestFilterVisiblePosts_OwnerSeesOwnPosts は一括フィルタでも本人の投稿が
// 公開範囲によらず残ることをテストする。
func TestFilterVisiblePosts_OwnerSeesOwnPosts(t *testing.T) {
	me := privateAuthor("me")
	posts := []*model.RecipePost{
		postBy("p1", me, model.VisibilityCloseFriends),
		postBy("p2", me, model.VisibilityFollowers),
	}

	svc := NewService(repoWith(nil, nil))
	got, err := svc.FilterVisiblePosts(context.Background(), posts, &model.User{ID: "me", IsPrivate: true})
	if err != nil {
		t.Fatalf("FilterVisiblePosts returned error: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("visible posts = %d, want 2", len(got))
	}
}

// TestFilterVisiblePosts_DeduplicatesAndKeepsOrder は重複IDの除去と
// 入力順序の保持をテストする。
func TestFilterVisiblePosts_DeduplicatesAndKeepsOrder(t *testing.T) {
	author := publicAuthor("a1")
	p1 := postBy("p1", author, model.VisibilityPublic)
	p2 := postBy("p2", author, model.VisibilityPublic)
	posts := []*model.RecipePost{p2, p1, p2}

	svc := NewService(repoWith(nil, nil))
	got, err := svc.FilterVisiblePosts(context.Background(), posts, &model.User{ID: "viewer-1"})
	if err != nil {
		t.Fatalf("FilterVisiblePosts returned error: %v", err)
	}

	if len(got) != 2 || got[0].ID != "p2" || got[1].ID != "p1" {
		ids := make([]string, len(got))
		for i, p := range got {
			ids[i] = p.ID
		}
		t.Errorf("visible posts = %v, want [p2 p1]", ids)
	}
}

// TestIsFollower_AuthorIsOwnFollower は投稿者が可視性判定上
// 自分自身のフォロワーとみなされることをテストする。
func TestIsFollower_AuthorIsOwnFollower(t *testing.T) {
	svc := NewService(&mockRelationRepo{})
	got, err := svc.IsFollower(context.Background(), &model.User{ID: "a1"}, "a1")
	if err != nil {
		t.Fatalf("IsFollower returned error: %v", err)
	}
	if !got {
		t.Error("author should count as own follower")
	}

	got, err = svc.IsFollower(context.Background(), nil, "a1")
	if err != nil {
		t.Fatalf("IsFollower returned error: %v", err)
	}
	if got {
		t.Error("anonymous viewer is never a follower")
	}
}
