package dto

// ── 签到模块 DTO ──

// AttendanceEntry 单个签到状态
type AttendanceEntry struct {
	UserID    string `json:"user_id"    binding:"required,uuid"`
	CheckedIn bool   `json:"checked_in"`
}

// SaveAttendanceRequest 批量保存签到
type SaveAttendanceRequest struct {
	Entries []AttendanceEntry `json:"entries" binding:"required,min=1,max=500,dive"`
}

// WalkInRequest 现场签到（按邮箱解析用户）
type WalkInRequest struct {
	Email string `json:"email" binding:"required,email,max=255"`
}

// ── 响应 ──

// RosterEntryResponse 名单条目
type RosterEntryResponse struct {
	UserID        string  `json:"user_id"`
	Name          string  `json:"name"`
	Email         string  `json:"email"`
	BookingID     *string `json:"booking_id,omitempty"`
	BookingStatus *string `json:"booking_status,omitempty"`
	CheckedIn     bool    `json:"checked_in"`
	WalkIn        bool    `json:"walk_in"`
	CheckedInAt   *string `json:"checked_in_at,omitempty"`
	Dirty         bool    `json:"dirty"`
}

// RosterResponse 课程签到名单
type RosterResponse struct {
	ClassID     string                `json:"class_id"`
	ClassStatus string                `json:"class_status"`
	Entries     []RosterEntryResponse `json:"entries"`
}

// SaveAttendanceResponse 保存结果；Failed 中的用户仍为未保存状态
type SaveAttendanceResponse struct {
	ClassStatus string   `json:"class_status"`
	Persisted   []string `json:"persisted"`
	Failed      []string `json:"failed"`
}

// CompleteClassResponse 结课结果
type CompleteClassResponse struct {
	ClassID   string `json:"class_id"`
	Status    string `json:"status"`
	CheckedIn int    `json:"checked_in"`
	NoShows   int64  `json:"no_shows"`
}
