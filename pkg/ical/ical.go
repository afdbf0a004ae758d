// Package ical 生成 RFC 5545 日历文本（预约的 .ics 附件）。
//
// 行折叠（75 字节）与 TEXT 字段转义由 golang-ical 序列化完成；
// 本包负责 UID、METHOD、带 TZID 的本地起止时间等语义。
package ical

import (
	"fmt"
	"strconv"
	"time"

	ics "github.com/arran4/golang-ical"
)

const localDateTimeLayout = "20060102T150405"

// Event 一次预约对应的日历事件
type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	URL         string
	Start       time.Time // 已位于 TZID 对应时区
	End         time.Time
	TZID        string
	Sequence    int
	Cancelled   bool
}

// Builder 日历生成器
type Builder struct {
	productID string
	now       func() time.Time
}

// NewBuilder 创建日历生成器
func NewBuilder(productID string, now func() time.Time) *Builder {
	if now == nil {
		now = time.Now
	}
	return &Builder{productID: productID, now: now}
}

// BookingUID 预约的稳定 UID，同一预约多次生成（更新或取消）保持一致
func BookingUID(bookingID, domain string) string {
	return fmt.Sprintf("booking-%s@%s", bookingID, domain)
}

// Render 渲染单事件日历
// 已取消的事件使用 METHOD:CANCEL + STATUS:CANCELLED，其余为 METHOD:REQUEST
func (b *Builder) Render(ev Event) (string, error) {
	if ev.UID == "" {
		return "", fmt.Errorf("ical: 事件 UID 不能为空")
	}
	if ev.TZID == "" {
		return "", fmt.Errorf("ical: 事件 TZID 不能为空")
	}
	if !ev.End.After(ev.Start) {
		return "", fmt.Errorf("ical: 结束时间必须晚于开始时间")
	}

	cal := ics.NewCalendar()
	cal.SetProductId(b.productID)
	if ev.Cancelled {
		cal.SetMethod(ics.MethodCancel)
	} else {
		cal.SetMethod(ics.MethodRequest)
	}

	tzid := &ics.KeyValues{Key: "TZID", Value: []string{ev.TZID}}

	e := cal.AddEvent(ev.UID)
	e.SetDtStampTime(b.now().UTC())
	e.SetProperty(ics.ComponentPropertyDtStart, ev.Start.Format(localDateTimeLayout), tzid)
	e.SetProperty(ics.ComponentPropertyDtEnd, ev.End.Format(localDateTimeLayout), tzid)
	e.SetProperty(ics.ComponentPropertySequence, strconv.Itoa(ev.Sequence))
	e.SetSummary(ev.Summary)
	if ev.Description != "" {
		e.SetDescription(ev.Description)
	}
	if ev.Location != "" {
		e.SetLocation(ev.Location)
	}
	if ev.URL != "" {
		e.SetURL(ev.URL)
	}
	if ev.Cancelled {
		e.SetStatus(ics.ObjectStatusCancelled)
	} else {
		e.SetStatus(ics.ObjectStatusConfirmed)
	}

	return cal.Serialize(), nil
}
