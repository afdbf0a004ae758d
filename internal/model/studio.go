package model

import (
	"time"

	"gorm.io/datatypes"
)

// 工作室成员角色
const (
	RoleOwner   = "owner"
	RoleAdmin   = "admin"
	RoleTeacher = "teacher"
	RoleMember  = "member"
)

// StudioSettings 工作室设置（JSONB）
type StudioSettings struct {
	ClosureDates []string `json:"closure_dates,omitempty"` // YYYY-MM-DD
}

// Studio 工作室 — 对应 studios
type Studio struct {
	StudioID string                             `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"studio_id"`
	Name     string                             `gorm:"type:varchar(200);not null"                     json:"name"`
	OwnerID  string                             `gorm:"type:uuid;not null"                             json:"owner_id"`
	Timezone string                             `gorm:"type:varchar(64);not null;default:'UTC'"        json:"timezone"`
	Settings datatypes.JSONType[StudioSettings] `gorm:"type:jsonb;not null;default:'{}'"               json:"settings"`
	BaseModel
}

// TableName 指定表名
func (Studio) TableName() string { return "studios" }

// StudioMember 工作室成员 — 对应 studio_members
type StudioMember struct {
	StudioID  string    `gorm:"type:uuid;primaryKey"                        json:"studio_id"`
	UserID    string    `gorm:"type:uuid;primaryKey"                        json:"user_id"`
	Role      string    `gorm:"type:varchar(20);not null;default:'member'"  json:"role"` // owner | admin | teacher | member
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"          json:"created_at"`
}

// TableName 指定表名
func (StudioMember) TableName() string { return "studio_members" }

// [自证通过] internal/model/studio.go
