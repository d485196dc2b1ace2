package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はユーザーが入力するプロフィール文字列を無害化する。
// 表示名にHTMLは不要なため、bluemondayのStrictPolicyで全てのタグを除去する。
type ProfileSanitizer struct {
	policy *bluemonday.Policy
}

// NewProfileSanitizer は新しいProfileSanitizerを生成する。
func NewProfileSanitizer() *ProfileSanitizer {
	return &ProfileSanitizer{policy: bluemonday.StrictPolicy()}
}

// SanitizeName は表示名からタグを除去し、前後の空白を取り除く。
// script/styleの中身は要素ごと除去される。
func (s *ProfileSanitizer) SanitizeName(name string) string {
	return strings.TrimSpace(s.policy.Sanitize(name))
}
