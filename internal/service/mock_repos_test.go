package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"studioflow/internal/model"
	"studioflow/internal/repository"
	apperrors "studioflow/pkg/errors"
	"studioflow/pkg/push"
)

var errMockStore = errors.New("mock store failure")

// ── 测试聚合 ──

type mockRepos struct {
	studio       *mockStudioRepo
	user         *mockUserRepo
	template     *mockClassTemplateRepo
	instance     *mockClassInstanceRepo
	booking      *mockBookingRepo
	attendance   *mockAttendanceRepo
	notification *mockNotificationRepo
}

func newMockRepos() (*repository.Repository, *mockRepos) {
	m := &mockRepos{
		studio:       newMockStudioRepo(),
		user:         newMockUserRepo(),
		template:     newMockClassTemplateRepo(),
		booking:      newMockBookingRepo(),
		attendance:   newMockAttendanceRepo(),
		notification: &mockNotificationRepo{},
	}
	m.instance = newMockClassInstanceRepo(m.template, m.booking)
	m.booking.users = m.user
	m.booking.instances = m.instance
	m.attendance.users = m.user

	repo := &repository.Repository{
		Studio:        m.studio,
		User:          m.user,
		ClassTemplate: m.template,
		ClassInstance: m.instance,
		Booking:       m.booking,
		Attendance:    m.attendance,
		Notification:  m.notification,
	}
	return repo, m
}

// ── Mock StudioRepository ──

type mockStudioRepo struct {
	studios map[string]*model.Studio
	members map[string]string // "studioID|userID" → role
}

func newMockStudioRepo() *mockStudioRepo {
	return &mockStudioRepo{studios: make(map[string]*model.Studio), members: make(map[string]string)}
}

func (m *mockStudioRepo) add(id string, closures ...string) *model.Studio {
	s := &model.Studio{
		StudioID: id,
		Name:     "Studio " + id,
		Timezone: "UTC",
		Settings: datatypes.NewJSONType(model.StudioSettings{ClosureDates: closures}),
	}
	m.studios[id] = s
	return s
}

func (m *mockStudioRepo) GetByID(_ context.Context, id string) (*model.Studio, error) {
	if s, ok := m.studios[id]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockStudioRepo) ListIDs(_ context.Context) ([]string, error) {
	ids := make([]string, 0, len(m.studios))
	for id := range m.studios {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *mockStudioRepo) GetMemberRole(_ context.Context, studioID, userID string) (string, error) {
	if role, ok := m.members[studioID+"|"+userID]; ok {
		return role, nil
	}
	return "", gorm.ErrRecordNotFound
}

// ── Mock UserRepository ──

type mockUserRepo struct {
	users map[string]*model.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[string]*model.User)}
}

func (m *mockUserRepo) add(id, name string) *model.User {
	u := &model.User{UserID: id, Name: name, Email: strings.ToLower(name) + "@example.com"}
	m.users[id] = u
	return u
}

func (m *mockUserRepo) GetByID(_ context.Context, id string) (*model.User, error) {
	if u, ok := m.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	for _, u := range m.users {
		if strings.EqualFold(u.Email, strings.TrimSpace(email)) {
			return u, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockUserRepo) ListByIDs(_ context.Context, ids []string) ([]model.User, error) {
	var result []model.User
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			result = append(result, *u)
		}
	}
	return result, nil
}

// ── Mock ClassTemplateRepository ──

type mockClassTemplateRepo struct {
	templates map[string]*model.ClassTemplate
	order     []string
	seq       int
}

func newMockClassTemplateRepo() *mockClassTemplateRepo {
	return &mockClassTemplateRepo{templates: make(map[string]*model.ClassTemplate)}
}

func (m *mockClassTemplateRepo) Create(_ context.Context, tpl *model.ClassTemplate) error {
	if tpl.TemplateID == "" {
		m.seq++
		tpl.TemplateID = fmt.Sprintf("tpl-%d", m.seq)
	}
	m.templates[tpl.TemplateID] = tpl
	m.order = append(m.order, tpl.TemplateID)
	return nil
}

func (m *mockClassTemplateRepo) GetByID(_ context.Context, id string) (*model.ClassTemplate, error) {
	if t, ok := m.templates[id]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockClassTemplateRepo) ListActiveByStudio(_ context.Context, studioID string) ([]model.ClassTemplate, error) {
	var result []model.ClassTemplate
	for _, id := range m.order {
		t := m.templates[id]
		if t.StudioID == studioID && t.Active {
			result = append(result, *t)
		}
	}
	return result, nil
}

// ── Mock ClassInstanceRepository ──

type mockClassInstanceRepo struct {
	instances map[string]*model.ClassInstance
	order     []string
	seq       int
	templates *mockClassTemplateRepo
	bookings  *mockBookingRepo
	updateErr error
	insertErr error
	locked    []string // GetForUpdate 调用记录
}

func newMockClassInstanceRepo(templates *mockClassTemplateRepo, bookings *mockBookingRepo) *mockClassInstanceRepo {
	return &mockClassInstanceRepo{
		instances: make(map[string]*model.ClassInstance),
		templates: templates,
		bookings:  bookings,
	}
}

func (m *mockClassInstanceRepo) Create(_ context.Context, inst *model.ClassInstance) error {
	if inst.ClassID == "" {
		m.seq++
		inst.ClassID = fmt.Sprintf("class-%d", m.seq)
	}
	if inst.Version == 0 {
		inst.Version = 1
	}
	cp := *inst
	m.instances[inst.ClassID] = &cp
	m.order = append(m.order, inst.ClassID)
	return nil
}

func (m *mockClassInstanceRepo) GetByStudio(_ context.Context, studioID, classID string) (*model.ClassInstance, error) {
	inst, ok := m.instances[classID]
	if !ok || inst.StudioID != studioID {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *inst
	if t, ok := m.templates.templates[inst.TemplateID]; ok {
		cp.Template = t
	}
	return &cp, nil
}

func (m *mockClassInstanceRepo) GetForUpdate(ctx context.Context, studioID, classID string) (*model.ClassInstance, error) {
	m.locked = append(m.locked, classID)
	return m.GetByStudio(ctx, studioID, classID)
}

func (m *mockClassInstanceRepo) ListExistingKeys(_ context.Context, studioID string, templateIDs []string, from, to string) ([]model.ClassInstance, error) {
	wanted := make(map[string]bool, len(templateIDs))
	for _, id := range templateIDs {
		wanted[id] = true
	}
	var result []model.ClassInstance
	for _, id := range m.order {
		inst := m.instances[id]
		if inst.StudioID == studioID && wanted[inst.TemplateID] && inst.Date >= from && inst.Date <= to {
			result = append(result, model.ClassInstance{TemplateID: inst.TemplateID, Date: inst.Date})
		}
	}
	return result, nil
}

func (m *mockClassInstanceRepo) CountByTemplate(_ context.Context, templateID string) (int64, error) {
	var n int64
	for _, inst := range m.instances {
		if inst.TemplateID == templateID {
			n++
		}
	}
	return n, nil
}

// InsertIgnoreConflicts 模拟 (template_id, date) 唯一约束
func (m *mockClassInstanceRepo) InsertIgnoreConflicts(ctx context.Context, rows []model.ClassInstance) (int64, error) {
	if m.insertErr != nil {
		return 0, m.insertErr
	}
	var inserted int64
	for i := range rows {
		if m.exists(rows[i].TemplateID, rows[i].Date) {
			continue
		}
		row := rows[i]
		if err := m.Create(ctx, &row); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

func (m *mockClassInstanceRepo) exists(templateID, date string) bool {
	for _, inst := range m.instances {
		if inst.TemplateID == templateID && inst.Date == date {
			return true
		}
	}
	return false
}

func (m *mockClassInstanceRepo) Update(_ context.Context, classID string, version int, fields map[string]interface{}) error {
	if m.updateErr != nil {
		return m.updateErr
	}
	inst, ok := m.instances[classID]
	if !ok || inst.Version != version {
		return apperrors.ErrOptimisticLock
	}
	applyFields(inst, fields)
	return nil
}

func (m *mockClassInstanceRepo) AdvanceStatus(_ context.Context, classID, from, to string) (bool, error) {
	if m.updateErr != nil {
		return false, m.updateErr
	}
	inst, ok := m.instances[classID]
	if !ok || inst.Status != from {
		return false, nil
	}
	inst.Status = to
	inst.Version++
	return true, nil
}

func (m *mockClassInstanceRepo) ListSchedule(_ context.Context, filter repository.ScheduleFilter) ([]model.ClassInstanceWithCount, error) {
	var result []model.ClassInstanceWithCount
	for _, id := range m.order {
		inst := m.instances[id]
		if inst.StudioID != filter.StudioID || inst.Date < filter.From || inst.Date > filter.To {
			continue
		}
		if filter.TeacherID != "" && (inst.TeacherID == nil || *inst.TeacherID != filter.TeacherID) {
			continue
		}
		if filter.TemplateID != "" && inst.TemplateID != filter.TemplateID {
			continue
		}
		count := 0
		for _, b := range m.bookings.bookings {
			if b.ClassID == inst.ClassID && b.Status != model.BookingStatusCancelled {
				count++
			}
		}
		cp := *inst
		cp.Template = m.templates.templates[inst.TemplateID]
		result = append(result, model.ClassInstanceWithCount{ClassInstance: cp, BookingCount: count})
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Date != result[j].Date {
			return result[i].Date < result[j].Date
		}
		return result[i].StartTime < result[j].StartTime
	})
	return result, nil
}

// ── Mock BookingRepository ──

type mockBookingRepo struct {
	bookings  []*model.Booking
	seq       int
	users     *mockUserRepo
	instances *mockClassInstanceRepo
}

func newMockBookingRepo() *mockBookingRepo {
	return &mockBookingRepo{}
}

func (m *mockBookingRepo) add(classID, userID, status string) *model.Booking {
	m.seq++
	b := &model.Booking{
		BookingID: fmt.Sprintf("booking-%d", m.seq),
		ClassID:   classID,
		UserID:    userID,
		Status:    status,
	}
	m.bookings = append(m.bookings, b)
	return b
}

func (m *mockBookingRepo) Create(_ context.Context, booking *model.Booking) error {
	for _, b := range m.bookings {
		if b.ClassID == booking.ClassID && b.UserID == booking.UserID {
			return repository.ErrDuplicate
		}
	}
	m.seq++
	booking.BookingID = fmt.Sprintf("booking-%d", m.seq)
	booking.CreatedAt = time.Now()
	booking.UpdatedAt = booking.CreatedAt
	cp := *booking
	m.bookings = append(m.bookings, &cp)
	return nil
}

func (m *mockBookingRepo) GetByID(_ context.Context, id string) (*model.Booking, error) {
	for _, b := range m.bookings {
		if b.BookingID == id {
			cp := *b
			if m.instances != nil {
				if inst, ok := m.instances.instances[b.ClassID]; ok {
					cp.Class, _ = m.instances.GetByStudio(context.Background(), inst.StudioID, b.ClassID)
				}
			}
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) GetByClassAndUser(_ context.Context, classID, userID string) (*model.Booking, error) {
	for _, b := range m.bookings {
		if b.ClassID == classID && b.UserID == userID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) ListByClass(_ context.Context, classID string, statuses ...string) ([]model.Booking, error) {
	var result []model.Booking
	for _, b := range m.bookings {
		if b.ClassID != classID {
			continue
		}
		if len(statuses) > 0 && !contains(statuses, b.Status) {
			continue
		}
		cp := *b
		if m.users != nil {
			cp.User = m.users.users[b.UserID]
		}
		result = append(result, cp)
	}
	return result, nil
}

func (m *mockBookingRepo) CountActive(_ context.Context, classID string) (int64, error) {
	var n int64
	for _, b := range m.bookings {
		if b.ClassID == classID && b.IsActive() {
			n++
		}
	}
	return n, nil
}

func (m *mockBookingRepo) UpdateStatus(_ context.Context, bookingID, status string) error {
	for _, b := range m.bookings {
		if b.BookingID == bookingID {
			b.Status = status
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (m *mockBookingRepo) MarkNoShow(_ context.Context, classID string, checkedInUserIDs []string) (int64, error) {
	var n int64
	for _, b := range m.bookings {
		if b.ClassID == classID && b.IsActive() && !contains(checkedInUserIDs, b.UserID) {
			b.Status = model.BookingStatusNoShow
			n++
		}
	}
	return n, nil
}

func (m *mockBookingRepo) status(classID, userID string) string {
	for _, b := range m.bookings {
		if b.ClassID == classID && b.UserID == userID {
			return b.Status
		}
	}
	return ""
}

// ── Mock AttendanceRepository ──

type mockAttendanceRepo struct {
	records map[string]*model.Attendance // "classID|userID"
	order   []string
	upserts int
	failFor map[string]bool
	users   *mockUserRepo
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: make(map[string]*model.Attendance), failFor: make(map[string]bool)}
}

func (m *mockAttendanceRepo) ListByClass(_ context.Context, classID string) ([]model.Attendance, error) {
	var result []model.Attendance
	for _, key := range m.order {
		rec := m.records[key]
		if rec.ClassID == classID {
			cp := *rec
			if m.users != nil {
				cp.User = m.users.users[rec.UserID]
			}
			result = append(result, cp)
		}
	}
	return result, nil
}

func (m *mockAttendanceRepo) Upsert(_ context.Context, record *model.Attendance) error {
	if m.failFor[record.UserID] {
		return errMockStore
	}
	m.upserts++
	key := record.ClassID + "|" + record.UserID
	if _, ok := m.records[key]; !ok {
		m.order = append(m.order, key)
	}
	cp := *record
	m.records[key] = &cp
	return nil
}

func (m *mockAttendanceRepo) get(classID, userID string) *model.Attendance {
	return m.records[classID+"|"+userID]
}

// ── Mock NotificationRepository ──

type mockNotificationRepo struct {
	seq     int
	batches [][]model.Notification
	err     error
	readIDs []string
}

func (m *mockNotificationRepo) BatchCreate(_ context.Context, items []model.Notification) error {
	if m.err != nil {
		return m.err
	}
	batch := make([]model.Notification, len(items))
	copy(batch, items)
	for i := range batch {
		m.seq++
		batch[i].NotificationID = fmt.Sprintf("notif-%d", m.seq)
	}
	m.batches = append(m.batches, batch)
	return nil
}

func (m *mockNotificationRepo) ListByUser(_ context.Context, userID string, unreadOnly bool, offset, limit int) ([]model.Notification, int64, error) {
	var all []model.Notification
	for _, batch := range m.batches {
		for _, n := range batch {
			if n.UserID == userID && (!unreadOnly || !n.IsRead) {
				all = append(all, n)
			}
		}
	}
	total := int64(len(all))
	if offset >= len(all) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], total, nil
}

func (m *mockNotificationRepo) MarkRead(_ context.Context, userID, notificationID string) (bool, error) {
	for _, batch := range m.batches {
		for i := range batch {
			if batch[i].NotificationID == notificationID && batch[i].UserID == userID {
				batch[i].IsRead = true
				m.readIDs = append(m.readIDs, notificationID)
				return true, nil
			}
		}
	}
	return false, nil
}

// ── Mock push.Publisher ──

type mockPublisher struct {
	messages []push.Message
	err      error
}

func (m *mockPublisher) Publish(_ context.Context, msg push.Message) error {
	m.messages = append(m.messages, msg)
	return m.err
}

func (m *mockPublisher) Close() error { return nil }

// ── 辅助 ──

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }

// fixedClock 固定时钟
func fixedClock(date string) func() time.Time {
	t, err := time.Parse(dateLayout, date)
	if err != nil {
		panic(err)
	}
	return func() time.Time { return t.Add(9 * time.Hour) }
}

func (m *mockClassTemplateRepo) mustList() []model.ClassTemplate {
	var result []model.ClassTemplate
	for _, id := range m.order {
		result = append(result, *m.templates[id])
	}
	return result
}
