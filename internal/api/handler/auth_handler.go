package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/internal/dto"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

// TokenRevoker Token 吊销（由 pkg/redis.Client 实现）
type TokenRevoker interface {
	RevokeToken(ctx context.Context, jti string, ttl time.Duration) error
}

// AuthHandler 认证模块 HTTP 处理器
type AuthHandler struct {
	revoker TokenRevoker
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(revoker TokenRevoker) *AuthHandler {
	return &AuthHandler{revoker: revoker}
}

// Me 当前 Token 信息
// GET /api/v1/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}
	resp := dto.TokenInfoResponse{
		Subject: claims.Subject,
		Role:    claims.Role,
		TokenID: claims.ID,
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time.UTC().Format(time.RFC3339)
	}
	response.OK(c, resp)
}

// Revoke 吊销当前 Token
// POST /api/v1/auth/revoke
func (h *AuthHandler) Revoke(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}
	if h.revoker == nil {
		response.Error(c, http.StatusServiceUnavailable, 11002, "Token 吊销服务不可用")
		return
	}
	if err := h.revoker.RevokeToken(c.Request.Context(), claims.ID, claims.RemainingTTL()); err != nil {
		_ = c.Error(err)
		response.InternalError(c)
		return
	}
	response.OK(c, nil)
}
