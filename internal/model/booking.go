package model

import "time"

// 预约状态
const (
	BookingStatusBooked    = "booked"
	BookingStatusConfirmed = "confirmed"
	BookingStatusCancelled = "cancelled"
	BookingStatusNoShow    = "no_show"
)

// Booking 预约 — 对应 bookings
type Booking struct {
	BookingID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"booking_id"`
	ClassID   string `gorm:"type:uuid;not null"                             json:"class_id"`
	UserID    string `gorm:"type:uuid;not null"                             json:"user_id"`
	Status    string `gorm:"type:varchar(20);not null;default:'booked'"     json:"status"` // booked | confirmed | cancelled | no_show
	BaseModel

	// 关联
	User  *User          `gorm:"foreignKey:UserID;references:UserID"   json:"user,omitempty"`
	Class *ClassInstance `gorm:"foreignKey:ClassID;references:ClassID" json:"class,omitempty"`
}

// TableName 指定表名
func (Booking) TableName() string { return "bookings" }

// IsActive 是否为有效预约（booked/confirmed）
func (b *Booking) IsActive() bool {
	return b.Status == BookingStatusBooked || b.Status == BookingStatusConfirmed
}

// Attendance 签到记录 — 对应 attendance
type Attendance struct {
	AttendanceID string     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"attendance_id"`
	ClassID      string     `gorm:"type:uuid;not null"                             json:"class_id"`
	UserID       string     `gorm:"type:uuid;not null"                             json:"user_id"`
	CheckedIn    bool       `gorm:"not null"                                       json:"checked_in"`
	WalkIn       bool       `gorm:"not null"                                       json:"walk_in"`
	CheckedInAt  *time.Time `json:"checked_in_at,omitempty"`
	CheckedInBy  *string    `gorm:"type:uuid"                                      json:"checked_in_by,omitempty"`
	BaseModel

	// 关联
	User *User `gorm:"foreignKey:UserID;references:UserID" json:"user,omitempty"`
}

// TableName 指定表名
func (Attendance) TableName() string { return "attendance" }

// [自证通过] internal/model/booking.go
