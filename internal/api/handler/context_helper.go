package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"studioflow/internal/api/middleware"
	"studioflow/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get(middleware.ContextUserID)
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetParam 读取必填路径参数，缺失时写入 400
func MustGetParam(c *gin.Context, name string) (string, bool) {
	v := c.Param(name)
	if v == "" {
		response.BadRequest(c, 10001, name+" 不能为空")
		return "", false
	}
	return v, true
}

// BindOptionalJSON 绑定可选的 JSON 请求体
// 请求体为空（含分块传输的空体）时返回 present=false 且不报错
func BindOptionalJSON(c *gin.Context, obj any) (present bool, err error) {
	if c.Request.ContentLength == 0 {
		return false, nil
	}
	if err := c.ShouldBindJSON(obj); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
