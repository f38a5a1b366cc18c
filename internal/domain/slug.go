package domain

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"strings"
)

const (
	slugTitleMax    = 30
	slugSuffixLen   = 5
	slugSuffixChars = "0123456789abcdefghijklmnopqrstuvwxyz"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify 将标题转为小写，连续的非字母数字替换为 '-'，截断到 30 个字符。
func Slugify(title string) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	if len(s) > slugTitleMax {
		s = s[:slugTitleMax]
	}
	return s
}

// NewPublicSlug 生成 slugify(title)[0:30] + "-" + 5 位随机字母数字。
func NewPublicSlug(title string) (string, error) {
	b := make([]byte, slugSuffixLen)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	for i := range b {
		b[i] = slugSuffixChars[int(b[i])%len(slugSuffixChars)]
	}
	return Slugify(title) + "-" + string(b), nil
}
