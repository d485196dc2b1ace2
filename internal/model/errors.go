// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, sheet, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeUserNotFound       = "USER_NOT_FOUND"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidPictureURL  = "INVALID_PICTURE_URL"
	ErrCodeMissingGoogleToken = "MISSING_GOOGLE_TOKEN"
	ErrCodeSheetFetchFailed   = "SHEET_FETCH_FAILED"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthorizedError は認証失敗エラーを生成する。
// トークン不正とセッション失効の区別は外部に出さない。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewForbiddenError は権限不足エラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:     ErrCodeForbidden,
		Message:  "この操作を実行する権限がありません。",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ユーザーIDを確認するか、ログインし直してください。",
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

// NewInvalidPictureURLError はプロフィール画像URLが不正な場合のエラーを生成する。
func NewInvalidPictureURLError(raw string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidPictureURL,
		Message:  fmt.Sprintf("無効な画像URLです: %s", raw),
		Category: "validation",
		Action:   "http:// または https:// で始まる画像URLを指定してください。",
	}
}

// NewMissingGoogleTokenError はGoogleアクセストークンが渡されなかった場合のエラーを生成する。
func NewMissingGoogleTokenError() *APIError {
	return &APIError{
		Code:     ErrCodeMissingGoogleToken,
		Message:  "Googleアクセストークンが指定されていません。",
		Category: "auth",
		Action:   "X-Google-Access-Token ヘッダーを付与するか、Googleで再ログインしてください。",
	}
}

// NewSheetFetchFailedError はスプレッドシート取得失敗エラーを生成する。
func NewSheetFetchFailedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSheetFetchFailed,
		Message:  fmt.Sprintf("スプレッドシートの取得に失敗しました: %s", reason),
		Category: "sheet",
		Action:   "シートへのアクセス権限を確認し、しばらく待ってから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterの秒数だけ待ってから再度お試しください。",
	}
}
