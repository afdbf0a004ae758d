package dto

// ── 课表模块 DTO ──

// UpdateClassRequest 课程实例稀疏更新
// teacher_id 传空字符串表示清除教师
type UpdateClassRequest struct {
	TeacherID   *string `json:"teacher_id"`
	MaxCapacity *int    `json:"max_capacity" binding:"omitempty,min=0"`
	StartTime   *string `json:"start_time"   binding:"omitempty,clock"`
	Notes       *string `json:"notes"        binding:"omitempty,max=2000"`
	Status      *string `json:"status"`
}

// IsEmpty 是否未携带任何可识别字段
func (r *UpdateClassRequest) IsEmpty() bool {
	return r.TeacherID == nil && r.MaxCapacity == nil && r.StartTime == nil &&
		r.Notes == nil && r.Status == nil
}

// CreateOneOffClassRequest 单次课程创建
type CreateOneOffClassRequest struct {
	Name        string  `json:"name"         binding:"required,max=200"`
	Date        string  `json:"date"         binding:"required,ymd"`
	StartTime   string  `json:"start_time"   binding:"required,clock"`
	DurationMin int     `json:"duration_min" binding:"required,min=1,max=1440"`
	Description string  `json:"description"  binding:"omitempty,max=2000"`
	TeacherID   *string `json:"teacher_id"   binding:"omitempty,uuid"`
	Capacity    *int    `json:"capacity"     binding:"omitempty,min=0"`
	Notes       string  `json:"notes"        binding:"omitempty,max=2000"`
	FeedEnabled *bool   `json:"feed_enabled"`
}

// ScheduleQuery 课表查询参数（日期闭区间）
type ScheduleQuery struct {
	From     string `form:"from"     binding:"required,ymd"`
	To       string `form:"to"       binding:"required,ymd"`
	Teacher  string `form:"teacher"  binding:"omitempty,uuid"`
	Template string `form:"template" binding:"omitempty,uuid"`
	Day      string `form:"day"` // 逗号分隔的 0-6
}

// ── 响应 ──

// TemplateBrief 模板摘要
type TemplateBrief struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Recurrence  string `json:"recurrence"`
	DurationMin int    `json:"duration_min"`
	Active      bool   `json:"active"`
}

// ClassResponse 课程实例
type ClassResponse struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	StudioID    string         `json:"studio_id"`
	TeacherID   *string        `json:"teacher_id"`
	Date        string         `json:"date"`
	StartTime   string         `json:"start_time"`
	EndTime     string         `json:"end_time"`
	MaxCapacity *int           `json:"max_capacity"`
	Status      string         `json:"status"`
	FeedEnabled bool           `json:"feed_enabled"`
	Notes       string         `json:"notes"`
	Version     int            `json:"version"`
	Template    *TemplateBrief `json:"template,omitempty"`
	Teacher     *UserBrief     `json:"teacher,omitempty"`
}

// ScheduleItemResponse 课表视图行，booking_count 为非取消预约数
type ScheduleItemResponse struct {
	ClassResponse
	BookingCount int `json:"booking_count"`
}
