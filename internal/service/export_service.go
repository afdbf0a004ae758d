package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"studioflow/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoClasses    = errors.New("no classes in the requested range")
	ErrExportGenerateFail = errors.New("failed to generate spreadsheet")
)

// maxExportDays 单次导出的最大日期跨度
const maxExportDays = 366

// ExportService 导出业务接口
//
// 导出以 bytes.Buffer 返回，由 Handler 层设置下载响应头。
type ExportService interface {
	// ExportSchedule 导出日期闭区间内的课表为 Excel
	ExportSchedule(ctx context.Context, studioID, from, to string) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportSchedule — 导出课表
// ═══════════════════════════════════════════════════════════
//
// 输出格式：单个 Sheet，标题行 + 表头 + 每个实例一行
//   | 日期 | 星期 | 开始 | 结束 | 课程 | 教师 | 状态 | 容量 | 预约数 |

func (s *exportService) ExportSchedule(ctx context.Context, studioID, from, to string) (*bytes.Buffer, string, error) {
	// 1. 参数
	fromDate, err := parseDate(from)
	if err != nil || !IsValidDate(from) {
		return nil, "", ErrInvalidDate
	}
	toDate, err := parseDate(to)
	if err != nil || !IsValidDate(to) {
		return nil, "", ErrInvalidDate
	}
	if from > to || toDate.Sub(fromDate).Hours()/24 > maxExportDays {
		return nil, "", ErrInvalidDateRange
	}

	studio, err := s.repo.Studio.GetByID(ctx, studioID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, "", ErrStudioNotFound
		}
		s.logger.Error("查询工作室失败", zap.String("studio_id", studioID), zap.Error(err))
		return nil, "", err
	}

	// 2. 查询课表
	rows, err := s.repo.ClassInstance.ListSchedule(ctx, repository.ScheduleFilter{
		StudioID: studioID,
		From:     from,
		To:       to,
	})
	if err != nil {
		s.logger.Error("查询课表失败", zap.String("studio_id", studioID), zap.Error(err))
		return nil, "", err
	}
	if len(rows) == 0 {
		return nil, "", ErrExportNoClasses
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Schedule"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	headers := []string{"Date", "Day", "Start", "End", "Class", "Teacher", "Status", "Capacity", "Booked"}
	widths := []float64{12, 8, 8, 8, 28, 20, 12, 10, 10}
	for i, w := range widths {
		col := colName(i)
		f.SetColWidth(sheetName, col, col, w)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	// 标题行
	f.SetCellValue(sheetName, "A1", fmt.Sprintf("%s: %s ~ %s", studio.Name, from, to))
	f.MergeCell(sheetName, "A1", cell(colName(len(headers)-1), 1))
	f.SetCellStyle(sheetName, "A1", "A1", headerStyle)

	// 表头
	for i, h := range headers {
		f.SetCellValue(sheetName, cell(colName(i), 2), h)
	}
	f.SetCellStyle(sheetName, "A2", cell(colName(len(headers)-1), 2), headerStyle)

	// 数据行
	dayNames := []string{"Sun", "Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}
	for i := range rows {
		r := &rows[i]
		row := 3 + i

		day := ""
		if d, err := parseDate(r.Date); err == nil {
			day = dayNames[d.Weekday()]
		}
		teacher := "-"
		if r.Teacher != nil {
			teacher = r.Teacher.Name
		}
		capacity := "-"
		if r.MaxCapacity != nil {
			capacity = fmt.Sprintf("%d", *r.MaxCapacity)
		}

		values := []interface{}{
			r.Date, day, trimSeconds(r.StartTime), trimSeconds(r.EndTime),
			className(&r.ClassInstance), teacher, r.Status, capacity, r.BookingCount,
		}
		for j, v := range values {
			f.SetCellValue(sheetName, cell(colName(j), row), v)
		}
	}

	// 4. 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("schedule_%s_%s.xlsx", from, to)
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}
