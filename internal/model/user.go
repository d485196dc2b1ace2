package model

import "time"

// User はサービス利用ユーザーを表す。
// Google IDで一意に識別され、ログインのたびにプロフィールが上書きされる。
type User struct {
	ID        string    `json:"id"`
	GoogleID  string    `json:"googleId"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session はユーザーのログインセッションを表す。
// Tokenは発行済みJWTそのもので、行が存在しかつ now < ExpiresAt の間のみ有効。
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// UserStats はユーザー情報とアクティブセッション数を表す。
type UserStats struct {
	User
	ActiveSessions int64 `json:"activeSessions"`
}
