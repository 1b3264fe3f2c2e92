package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/pkg/jwt"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

// 上下文键
const (
	CtxSubject = "subject"
	CtxRole    = "role"
	CtxClaims  = "claims"
)

// RevocationChecker Token 吊销名单查询（由 pkg/redis.Client 实现）
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// JWTAuth JWT 认证中间件
// 从 Authorization: Bearer <token> 中提取并验证服务 Token
// revoked 为 nil 时跳过吊销检查；吊销名单查询失败时降级放行
func JWTAuth(jwtMgr *jwt.Manager, revoked RevocationChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, 10002, "缺少认证头")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, 10002, "认证头格式无效")
			c.Abort()
			return
		}

		claims, err := jwtMgr.ParseToken(parts[1])
		if err != nil {
			response.Unauthorized(c, 10002, "Token 无效或已过期")
			c.Abort()
			return
		}

		if revoked != nil && claims.ID != "" {
			if yes, err := revoked.IsRevoked(c.Request.Context(), claims.ID); err == nil && yes {
				response.Unauthorized(c, 10002, "Token 已被吊销")
				c.Abort()
				return
			}
		}

		c.Set(CtxSubject, claims.Subject)
		c.Set(CtxRole, claims.Role)
		c.Set(CtxClaims, claims)

		c.Next()
	}
}

// RoleAuth 角色权限中间件
// 检查当前调用方是否具有指定角色之一
func RoleAuth(allowedRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := c.Get(CtxRole)
		if !exists {
			response.Unauthorized(c, 10002, "未认证")
			c.Abort()
			return
		}

		userRole, _ := role.(string)
		for _, r := range allowedRoles {
			if userRole == r {
				c.Next()
				return
			}
		}

		response.Forbidden(c, 10003, "无权限访问")
		c.Abort()
	}
}
