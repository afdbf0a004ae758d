package service

import (
	"errors"
	"time"

	"studioflow/internal/model"
)

// ErrNotOnRoster 用户不在该课程的签到名单中
var ErrNotOnRoster = errors.New("user is not on the class roster")

// RosterEntry 名单条目：预约持有人或现场签到者
// Dirty 表示本地修改尚未持久化
type RosterEntry struct {
	UserID        string
	Name          string
	Email         string
	BookingID     string
	BookingStatus string
	CheckedIn     bool
	WalkIn        bool
	CheckedInAt   *time.Time
	CheckedInBy   *string
	Dirty         bool
}

// Roster 单个课程实例的签到名单（预约持有人 ∪ 现场签到者）
type Roster struct {
	ClassID string
	entries []*RosterEntry
	index   map[string]*RosterEntry
}

// NewRoster 由预约与已有签到记录合并名单
// 签到记录覆盖预约条目的签到状态；只有签到记录的用户作为现场签到者追加
func NewRoster(classID string, bookings []model.Booking, records []model.Attendance) *Roster {
	r := &Roster{ClassID: classID, index: make(map[string]*RosterEntry)}

	for i := range bookings {
		b := &bookings[i]
		if _, dup := r.index[b.UserID]; dup {
			continue
		}
		e := &RosterEntry{
			UserID:        b.UserID,
			BookingID:     b.BookingID,
			BookingStatus: b.Status,
		}
		if b.User != nil {
			e.Name, e.Email = b.User.Name, b.User.Email
		}
		r.append(e)
	}

	for i := range records {
		rec := &records[i]
		e, ok := r.index[rec.UserID]
		if !ok {
			e = &RosterEntry{UserID: rec.UserID}
			if rec.User != nil {
				e.Name, e.Email = rec.User.Name, rec.User.Email
			}
			r.append(e)
		}
		e.CheckedIn = rec.CheckedIn
		e.WalkIn = rec.WalkIn
		e.CheckedInAt = rec.CheckedInAt
		e.CheckedInBy = rec.CheckedInBy
	}
	return r
}

func (r *Roster) append(e *RosterEntry) {
	r.entries = append(r.entries, e)
	r.index[e.UserID] = e
}

// Entries 按加入顺序返回全部条目
func (r *Roster) Entries() []*RosterEntry {
	return r.entries
}

// Entry 按用户查找条目
func (r *Roster) Entry(userID string) (*RosterEntry, bool) {
	e, ok := r.index[userID]
	return e, ok
}

// Toggle 翻转签到状态并标记 dirty，不访问存储
func (r *Roster) Toggle(userID string) error {
	e, ok := r.index[userID]
	if !ok {
		return ErrNotOnRoster
	}
	e.CheckedIn = !e.CheckedIn
	e.Dirty = true
	return nil
}

// Set 设置签到状态；仅在状态实际变化时标记 dirty
func (r *Roster) Set(userID string, checkedIn bool) (bool, error) {
	e, ok := r.index[userID]
	if !ok {
		return false, ErrNotOnRoster
	}
	if e.CheckedIn == checkedIn {
		return false, nil
	}
	e.CheckedIn = checkedIn
	e.Dirty = true
	return true, nil
}

// AddWalkIn 现场签到：已在名单中则置为已签到 + 现场，否则追加新条目
func (r *Roster) AddWalkIn(user *model.User) *RosterEntry {
	if e, ok := r.index[user.UserID]; ok {
		e.CheckedIn = true
		e.WalkIn = true
		e.Dirty = true
		return e
	}
	e := &RosterEntry{
		UserID:    user.UserID,
		Name:      user.Name,
		Email:     user.Email,
		CheckedIn: true,
		WalkIn:    true,
		Dirty:     true,
	}
	r.append(e)
	return e
}

// Dirty 返回所有未持久化条目
func (r *Roster) Dirty() []*RosterEntry {
	var dirty []*RosterEntry
	for _, e := range r.entries {
		if e.Dirty {
			dirty = append(dirty, e)
		}
	}
	return dirty
}

// CheckedInUserIDs 已签到用户
func (r *Roster) CheckedInUserIDs() []string {
	var ids []string
	for _, e := range r.entries {
		if e.CheckedIn {
			ids = append(ids, e.UserID)
		}
	}
	return ids
}
