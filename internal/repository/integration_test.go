//go:build integration

package repository_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"studioflow/internal/model"
	"studioflow/internal/repository"
	"studioflow/pkg/database"
	pkgerrors "studioflow/pkg/errors"
)

// ═══════════════════════════════════════════════════════════
// Test Setup
// ═══════════════════════════════════════════════════════════

var testDB *gorm.DB

func TestMain(m *testing.M) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		dsn = "host=localhost port=5433 user=studioflow password=studioflow dbname=studioflow_test sslmode=disable TimeZone=UTC"
	}

	var err error
	testDB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "无法连接测试数据库: %v\n", err)
		os.Exit(1)
	}

	sqlDB, err := testDB.DB()
	if err != nil {
		fmt.Fprintf(os.Stderr, "获取 sql.DB 失败: %v\n", err)
		os.Exit(1)
	}
	if err := database.RunMigrations(sqlDB, zap.NewNop()); err != nil {
		fmt.Fprintf(os.Stderr, "迁移失败: %v\n", err)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type fixture struct {
	studio   *model.Studio
	owner    *model.User
	member   *model.User
	template *model.ClassTemplate
}

// setupFixture 创建工作室、两个用户与一个周课模板，返回清理函数
func setupFixture(t *testing.T) (*fixture, func()) {
	t.Helper()
	ctx := context.Background()

	newUser := func(name string) *model.User {
		u := &model.User{
			UserID: uuid.NewString(),
			Email:  fmt.Sprintf("%s-%s@example.com", name, uuid.NewString()[:8]),
			Name:   name,
		}
		if err := testDB.WithContext(ctx).Create(u).Error; err != nil {
			t.Fatalf("创建用户失败: %v", err)
		}
		return u
	}
	owner := newUser("owner")
	member := newUser("member")

	studio := &model.Studio{Name: "测试工作室", OwnerID: owner.UserID, Timezone: "UTC"}
	if err := testDB.WithContext(ctx).Create(studio).Error; err != nil {
		t.Fatalf("创建工作室失败: %v", err)
	}
	testDB.Create(&model.StudioMember{StudioID: studio.StudioID, UserID: owner.UserID, Role: model.RoleOwner})
	testDB.Create(&model.StudioMember{StudioID: studio.StudioID, UserID: member.UserID, Role: model.RoleMember})

	dow := 1
	tpl := &model.ClassTemplate{
		StudioID:    studio.StudioID,
		Name:        "Morning Flow",
		DayOfWeek:   &dow,
		StartTime:   "09:00:00",
		DurationMin: 60,
		Recurrence:  model.RecurrenceWeekly,
		Active:      true,
	}
	if err := testDB.WithContext(ctx).Create(tpl).Error; err != nil {
		t.Fatalf("创建模板失败: %v", err)
	}

	cleanup := func() {
		classIDs := testDB.Model(&model.ClassInstance{}).Select("class_id").Where("studio_id = ?", studio.StudioID)
		testDB.Where("studio_id = ?", studio.StudioID).Delete(&model.Notification{})
		testDB.Where("class_id IN (?)", classIDs).Delete(&model.Attendance{})
		testDB.Where("class_id IN (?)", classIDs).Delete(&model.Booking{})
		testDB.Where("studio_id = ?", studio.StudioID).Delete(&model.ClassInstance{})
		testDB.Where("studio_id = ?", studio.StudioID).Delete(&model.ClassTemplate{})
		testDB.Where("studio_id = ?", studio.StudioID).Delete(&model.StudioMember{})
		testDB.Where("studio_id = ?", studio.StudioID).Delete(&model.Studio{})
		testDB.Where("user_id IN ?", []string{owner.UserID, member.UserID}).Delete(&model.User{})
	}
	return &fixture{studio: studio, owner: owner, member: member, template: tpl}, cleanup
}

func newInstance(f *fixture, date string) model.ClassInstance {
	return model.ClassInstance{
		TemplateID:  f.template.TemplateID,
		StudioID:    f.studio.StudioID,
		Date:        date,
		StartTime:   "09:00:00",
		EndTime:     "10:00:00",
		Status:      model.ClassStatusScheduled,
		FeedEnabled: true,
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Insert-or-skip
// ═══════════════════════════════════════════════════════════

func TestInsertIgnoreConflicts_SecondRunInsertsNothing(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	rows := []model.ClassInstance{newInstance(f, "2026-06-01"), newInstance(f, "2026-06-08")}
	n, err := repo.ClassInstance.InsertIgnoreConflicts(ctx, rows)
	if err != nil {
		t.Fatalf("首次插入失败: %v", err)
	}
	if n != 2 {
		t.Errorf("期望插入 2 行，实际 %d", n)
	}

	again := []model.ClassInstance{newInstance(f, "2026-06-01"), newInstance(f, "2026-06-08")}
	n, err = repo.ClassInstance.InsertIgnoreConflicts(ctx, again)
	if err != nil {
		t.Fatalf("重复插入失败: %v", err)
	}
	if n != 0 {
		t.Errorf("期望重复插入 0 行，实际 %d", n)
	}

	keys, err := repo.ClassInstance.ListExistingKeys(ctx, f.studio.StudioID,
		[]string{f.template.TemplateID}, "2026-06-01", "2026-06-30")
	if err != nil {
		t.Fatalf("ListExistingKeys 失败: %v", err)
	}
	if len(keys) != 2 {
		t.Errorf("期望窗口内 2 个实例，实际 %d", len(keys))
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Transaction
// ═══════════════════════════════════════════════════════════

func TestTransaction_Rollback(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()
	errBoom := errors.New("boom")

	inst := newInstance(f, "2026-07-06")
	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		if err := tx.ClassInstance.Create(ctx, &inst); err != nil {
			return err
		}
		return errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("期望返回 fn 的错误，实际: %v", err)
	}

	count, err := repo.ClassInstance.CountByTemplate(ctx, f.template.TemplateID)
	if err != nil {
		t.Fatalf("CountByTemplate 失败: %v", err)
	}
	if count != 0 {
		t.Errorf("期望回滚后无实例，实际 %d", count)
	}
}

func TestTransaction_Commit(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	tx, err := repo.BeginTx(ctx)
	if err != nil {
		t.Fatalf("BeginTx 失败: %v", err)
	}
	inst := newInstance(f, "2026-07-13")
	if err := repo.WithTx(tx).ClassInstance.Create(ctx, &inst); err != nil {
		tx.Rollback()
		t.Fatalf("事务内创建实例失败: %v", err)
	}
	if err := tx.Commit().Error; err != nil {
		t.Fatalf("Commit 失败: %v", err)
	}

	found, err := repo.ClassInstance.GetByStudio(ctx, f.studio.StudioID, inst.ClassID)
	if err != nil {
		t.Fatalf("提交后查询失败: %v", err)
	}
	if found.Template == nil || found.Template.Name != "Morning Flow" {
		t.Errorf("期望预加载模板，实际 %+v", found.Template)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Optimistic Lock
// ═══════════════════════════════════════════════════════════

func TestOptimisticLock_ClassInstance_ConflictDetected(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inst := newInstance(f, "2026-07-20")
	if err := repo.ClassInstance.Create(ctx, &inst); err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}

	if err := repo.ClassInstance.Update(ctx, inst.ClassID, inst.Version,
		map[string]interface{}{"notes": "first"}); err != nil {
		t.Fatalf("第一次更新应成功: %v", err)
	}

	err := repo.ClassInstance.Update(ctx, inst.ClassID, inst.Version,
		map[string]interface{}{"notes": "stale"})
	if !errors.Is(err, pkgerrors.ErrOptimisticLock) {
		t.Errorf("期望 ErrOptimisticLock，得到: %v", err)
	}

	found, _ := repo.ClassInstance.GetByStudio(ctx, f.studio.StudioID, inst.ClassID)
	if found.Version != inst.Version+1 {
		t.Errorf("期望 version=%d，实际 %d", inst.Version+1, found.Version)
	}
}

func TestClassInstance_AdvanceStatus_Conditional(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inst := newInstance(f, "2026-07-21")
	if err := repo.ClassInstance.Create(ctx, &inst); err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}

	advanced, err := repo.ClassInstance.AdvanceStatus(ctx, inst.ClassID, model.ClassStatusScheduled, model.ClassStatusInProgress)
	if err != nil || !advanced {
		t.Fatalf("首次推进应成功: advanced=%v err=%v", advanced, err)
	}

	advanced, err = repo.ClassInstance.AdvanceStatus(ctx, inst.ClassID, model.ClassStatusScheduled, model.ClassStatusInProgress)
	if err != nil {
		t.Fatalf("重复推进不应报错: %v", err)
	}
	if advanced {
		t.Error("状态已不是 scheduled，不应再次推进")
	}

	found, _ := repo.ClassInstance.GetByStudio(ctx, f.studio.StudioID, inst.ClassID)
	if found.Status != model.ClassStatusInProgress || found.Version != inst.Version+1 {
		t.Errorf("期望 in_progress / version=%d，实际 %s / %d", inst.Version+1, found.Status, found.Version)
	}
}

func TestClassInstance_GetForUpdate_InTransaction(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inst := newInstance(f, "2026-07-22")
	if err := repo.ClassInstance.Create(ctx, &inst); err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}

	err := repo.Transaction(ctx, func(tx *repository.Repository) error {
		locked, err := tx.ClassInstance.GetForUpdate(ctx, f.studio.StudioID, inst.ClassID)
		if err != nil {
			return err
		}
		if locked.ClassID != inst.ClassID {
			t.Errorf("期望锁定 %s，实际 %s", inst.ClassID, locked.ClassID)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("事务内行锁读取失败: %v", err)
	}

	if _, err := repo.ClassInstance.GetForUpdate(ctx, "00000000-0000-0000-0000-000000000000", inst.ClassID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("其他工作室应读不到该实例，实际 %v", err)
	}
}

// ═══════════════════════════════════════════════════════════
// Test: Bookings & schedule view
// ═══════════════════════════════════════════════════════════

func TestBooking_DuplicateMapped(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inst := newInstance(f, "2026-07-27")
	if err := repo.ClassInstance.Create(ctx, &inst); err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}

	first := &model.Booking{ClassID: inst.ClassID, UserID: f.member.UserID, Status: model.BookingStatusBooked}
	if err := repo.Booking.Create(ctx, first); err != nil {
		t.Fatalf("首次预约失败: %v", err)
	}
	second := &model.Booking{ClassID: inst.ClassID, UserID: f.member.UserID, Status: model.BookingStatusBooked}
	if err := repo.Booking.Create(ctx, second); !errors.Is(err, repository.ErrDuplicate) {
		t.Errorf("期望 ErrDuplicate，得到: %v", err)
	}
}

func TestListSchedule_CountsNonCancelledBookings(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inst := newInstance(f, "2026-08-03")
	if err := repo.ClassInstance.Create(ctx, &inst); err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}
	repo.Booking.Create(ctx, &model.Booking{ClassID: inst.ClassID, UserID: f.member.UserID, Status: model.BookingStatusBooked})
	repo.Booking.Create(ctx, &model.Booking{ClassID: inst.ClassID, UserID: f.owner.UserID, Status: model.BookingStatusCancelled})

	rows, err := repo.ClassInstance.ListSchedule(ctx, repository.ScheduleFilter{
		StudioID: f.studio.StudioID,
		From:     "2026-08-01",
		To:       "2026-08-31",
	})
	if err != nil {
		t.Fatalf("ListSchedule 失败: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("期望 1 行，实际 %d", len(rows))
	}
	if rows[0].BookingCount != 1 {
		t.Errorf("期望 booking_count=1，实际 %d", rows[0].BookingCount)
	}
}

func TestMarkNoShow_SkipsCheckedIn(t *testing.T) {
	f, cleanup := setupFixture(t)
	defer cleanup()

	repo := repository.NewRepository(testDB)
	ctx := context.Background()

	inst := newInstance(f, "2026-08-10")
	if err := repo.ClassInstance.Create(ctx, &inst); err != nil {
		t.Fatalf("创建实例失败: %v", err)
	}
	repo.Booking.Create(ctx, &model.Booking{ClassID: inst.ClassID, UserID: f.member.UserID, Status: model.BookingStatusBooked})
	repo.Booking.Create(ctx, &model.Booking{ClassID: inst.ClassID, UserID: f.owner.UserID, Status: model.BookingStatusConfirmed})

	n, err := repo.Booking.MarkNoShow(ctx, inst.ClassID, []string{f.owner.UserID})
	if err != nil {
		t.Fatalf("MarkNoShow 失败: %v", err)
	}
	if n != 1 {
		t.Errorf("期望 1 行置为 no_show，实际 %d", n)
	}

	b, _ := repo.Booking.GetByClassAndUser(ctx, inst.ClassID, f.member.UserID)
	if b.Status != model.BookingStatusNoShow {
		t.Errorf("期望 no_show，实际 %s", b.Status)
	}
}
