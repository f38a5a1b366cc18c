// Package google 校验 Google Identity Services 返回的 ID token。
package google

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/idtoken"

	"story-relay/internal/domain"
)

// validateFunc 与 idtoken.Validate 签名一致，测试中替换
type validateFunc func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)

// Verifier 使用 Google 公钥校验 ID token 的签名、过期时间和 audience。
type Verifier struct {
	clientID string
	validate validateFunc
}

// NewVerifier 创建 Verifier，clientID 为 OAuth 客户端 ID
func NewVerifier(clientID string) (*Verifier, error) {
	if clientID == "" {
		return nil, errors.New("google client id cannot be empty")
	}
	return &Verifier{clientID: clientID, validate: idtoken.Validate}, nil
}

// Verify 校验 token 并提取身份信息，邮箱必须已验证
func (v *Verifier) Verify(ctx context.Context, token string) (*domain.GoogleIdentity, error) {
	payload, err := v.validate(ctx, token, v.clientID)
	if err != nil {
		return nil, fmt.Errorf("google: invalid id token: %w", err)
	}
	return identityFromClaims(payload)
}

func identityFromClaims(payload *idtoken.Payload) (*domain.GoogleIdentity, error) {
	email, _ := payload.Claims["email"].(string)
	if email == "" {
		return nil, errors.New("google: id token has no email")
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok && !verified {
		return nil, errors.New("google: email is not verified")
	}
	name, _ := payload.Claims["name"].(string)
	picture, _ := payload.Claims["picture"].(string)
	return &domain.GoogleIdentity{
		Subject: payload.Subject,
		Email:   email,
		Name:    name,
		Picture: picture,
	}, nil
}
