package dto

// ── 通知模块 DTO ──

// NotificationListRequest 通知列表查询
type NotificationListRequest struct {
	UnreadOnly bool `form:"unread_only"`
	PaginationRequest
}

// NotificationResponse 通知
type NotificationResponse struct {
	ID        string  `json:"id"`
	StudioID  string  `json:"studio_id"`
	ClassID   *string `json:"class_id,omitempty"`
	Type      string  `json:"type"`
	Title     string  `json:"title"`
	Body      string  `json:"body"`
	IsRead    bool    `json:"is_read"`
	CreatedAt string  `json:"created_at"`
}
