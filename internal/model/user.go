// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 閲覧者（viewer）としてはnilが匿名（未ログイン）を表し、
// IsAuthenticated等のアクセサはnilレシーバーでも安全に呼び出せる。
type User struct {
	ID        string
	Username  string
	Email     string
	FirstName string
	LastName  string
	Bio       string
	AvatarURL string
	IsPrivate bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsAuthenticated は認証済みユーザーかどうかを返す。
// nil（匿名閲覧者）の場合はfalseを返す。
func (u *User) IsAuthenticated() bool {
	return u != nil && u.ID != ""
}

// PrivateAccount は非公開アカウントかどうかを返す。
// nil（匿名閲覧者）の場合はfalseを返す。
func (u *User) PrivateAccount() bool {
	return u != nil && u.IsPrivate
}

// FullName は「名 姓」形式のフルネームを返す。どちらも空の場合は空文字を返す。
func (u *User) FullName() string {
	if u == nil {
		return ""
	}
	switch {
	case u.FirstName == "":
		return u.LastName
	case u.LastName == "":
		return u.FirstName
	default:
		return u.FirstName + " " + u.LastName
	}
}

// Identity は外部IdPとの紐付け情報を表す。
// 将来的に複数のIdP（Google, GitHub等）に対応可能な構造。
type Identity struct {
	ID             string
	UserID         string
	Provider       string
	ProviderUserID string
	CreatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}
