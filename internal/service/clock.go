package service

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ── 日期与钟点工具 ──
//
// 日期统一为零填充的 YYYY-MM-DD 字符串，比较使用字典序；
// 钟点统一为 HH:MM:SS。日期运算按 UTC 整日进行，不做时区换算。

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02T15:04:05Z"
	minutesPerDay   = 24 * 60
	secondsPerHour  = 3600
)

// formatDate 格式化为 YYYY-MM-DD
func formatDate(t time.Time) string {
	return t.UTC().Format(dateLayout)
}

// formatTimestamp 响应中的时间戳统一为 UTC
func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// parseDate 解析 YYYY-MM-DD 为 UTC 零点
func parseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, time.UTC)
}

// truncateDay 取 UTC 当天零点
func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// addDays 整日偏移
func addDays(t time.Time, days int) time.Time {
	return t.AddDate(0, 0, days)
}

// nextWeekday 返回 from 当天或之后第一个 weekday（0=周日）
func nextWeekday(from time.Time, weekday int) time.Time {
	diff := (weekday - int(from.Weekday()) + 7) % 7
	return addDays(from, diff)
}

// parseClock 解析 HH:MM 或 HH:MM:SS，返回当天秒数
func parseClock(s string) (int, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid time %q", s)
	}
	limits := []int{23, 59, 59}
	total := 0
	for i, p := range parts {
		if len(p) != 2 {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		v, err := strconv.Atoi(p)
		if err != nil || v < 0 || v > limits[i] {
			return 0, fmt.Errorf("invalid time %q", s)
		}
		switch i {
		case 0:
			total += v * secondsPerHour
		case 1:
			total += v * 60
		default:
			total += v
		}
	}
	return total, nil
}

// formatClock 将当天秒数格式化为 HH:MM:SS（对 24h 取模）
func formatClock(seconds int) string {
	seconds %= minutesPerDay * 60
	if seconds < 0 {
		seconds += minutesPerDay * 60
	}
	return fmt.Sprintf("%02d:%02d:%02d", seconds/secondsPerHour, seconds%secondsPerHour/60, seconds%60)
}

// NormalizeClock 将 HH:MM[:SS] 统一为 HH:MM:SS
func NormalizeClock(s string) (string, error) {
	secs, err := parseClock(s)
	if err != nil {
		return "", err
	}
	return formatClock(secs), nil
}

// ComputeEndTime 开始时间 + 时长，跨零点时对 24h 取模
// 10:00 + 90 → 11:30:00；23:30 + 60 → 00:30:00
func ComputeEndTime(start string, durationMin int) (string, error) {
	secs, err := parseClock(start)
	if err != nil {
		return "", err
	}
	return formatClock(secs + durationMin*60), nil
}

// durationBetween 由起止钟点反推时长（分钟），跨零点按次日计算
func durationBetween(start, end string) (int, error) {
	s, err := parseClock(start)
	if err != nil {
		return 0, err
	}
	e, err := parseClock(end)
	if err != nil {
		return 0, err
	}
	diff := e - s
	if diff < 0 {
		diff += minutesPerDay * 60
	}
	return diff / 60, nil
}

// IsValidDate 校验 YYYY-MM-DD（零填充、真实日期）
func IsValidDate(s string) bool {
	if len(s) != len(dateLayout) {
		return false
	}
	_, err := parseDate(s)
	return err == nil
}

// IsValidClock 校验 HH:MM 或 HH:MM:SS
func IsValidClock(s string) bool {
	_, err := parseClock(s)
	return err == nil
}
