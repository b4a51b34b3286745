package shared

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// AdminSubjectKey 鉴权中间件写入的管理员标识
const AdminSubjectKey = "admin_subject"

// AdminSubject 读取当前管理员标识，缺失时返回 unknown。
func AdminSubject(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	if value, ok := c.Get(AdminSubjectKey); ok {
		if subject, ok := value.(string); ok && strings.TrimSpace(subject) != "" {
			return subject
		}
	}
	return "unknown"
}

// 列表分页默认值
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// PageParams 读取 page/page_size 查询参数，非法值回落到默认
func PageParams(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	pageSize, err := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(DefaultPageSize)))
	if err != nil || pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}
