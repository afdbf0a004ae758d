package dto

// ── 预约模块 DTO ──

// BookingResponse 预约
type BookingResponse struct {
	ID        string `json:"id"`
	ClassID   string `json:"class_id"`
	UserID    string `json:"user_id"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}
