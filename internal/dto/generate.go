package dto

// ── 课程实例生成 DTO ──

// GenerateClassesRequest 生成请求
// 平台接口要求 studioId；工作室接口以路径参数为准
type GenerateClassesRequest struct {
	StudioID   string `json:"studioId"`
	WeeksAhead *int   `json:"weeksAhead" binding:"omitempty,min=0"`
}

// GetWeeksAhead 未提供时返回 0（由服务层取默认值）
func (r *GenerateClassesRequest) GetWeeksAhead() int {
	if r.WeeksAhead == nil {
		return 0
	}
	return *r.WeeksAhead
}

// GenerateClassesResponse 生成结果
type GenerateClassesResponse struct {
	Generated int    `json:"generated"`
	StudioID  string `json:"studioId"`
}
