package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/sujith-eag/timetable-builder/internal/api/middleware"
	"github.com/sujith-eag/timetable-builder/pkg/jwt"
	"github.com/sujith-eag/timetable-builder/pkg/response"
)

// MustGetClaims 从 Gin 上下文中安全提取 JWT 声明。
// 如果认证中间件未注入声明，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get(middleware.CtxClaims)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	if !ok || claims == nil {
		response.Unauthorized(c, 10002, "未认证")
		return nil, false
	}
	return claims, true
}

// CallerSubject 当前调用方标识，未认证时为空串
func CallerSubject(c *gin.Context) string {
	return c.GetString(middleware.CtxSubject)
}
