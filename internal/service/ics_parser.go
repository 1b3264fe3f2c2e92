package service

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// ── ICS 解析器 ──────────────────────────────────────────────
//
// 职责：将 iCalendar (RFC 5545) 中的忙碌事件映射为不可用节次。
//
//   - DTSTART/DTEND 确定星期与时段
//   - RRULE / EXDATE 确定出现的周次；给定导入窗口时，窗口内不出现的事件忽略
//   - 与某节次时钟区间有交集即视为该节次不可用
//   - TRANSP:TRANSPARENT 的事件不占用时间，跳过
// ─────────────────────────────────────────────────────────────

const (
	icsMaxFileSize  = 5 * 1024 * 1024 // 5MB
	icsFetchTimeout = 30 * time.Second
)

// busyEvent ICS 解析中间结构
type busyEvent struct {
	Name      string
	DayOfWeek int // 1=Monday … 7=Sunday
	StartTime string
	EndTime   string
	Weeks     []int
}

// icsWindow 导入窗口：从 Start 所在周起共 Weeks 周；Start 为零值时不限
type icsWindow struct {
	Start time.Time
	Weeks int
}

func (w icsWindow) bounded() bool { return !w.Start.IsZero() && w.Weeks > 0 }

// FetchICSContent 从 URL 获取 ICS 内容
func FetchICSContent(rawURL string) (io.ReadCloser, error) {
	// webcal:// → https://
	u := rawURL
	if strings.HasPrefix(u, "webcal://") {
		u = "https://" + strings.TrimPrefix(u, "webcal://")
	}

	client := &http.Client{Timeout: icsFetchTimeout}
	resp, err := client.Get(u)
	if err != nil {
		return nil, fmt.Errorf("获取 ICS 失败: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("获取 ICS 失败: HTTP %d", resp.StatusCode)
	}
	// 限制响应体大小
	return struct {
		io.Reader
		io.Closer
	}{
		Reader: io.LimitReader(resp.Body, icsMaxFileSize),
		Closer: resp.Body,
	}, nil
}

// parseBusyEvents 解析 ICS 内容为忙碌事件列表（同名同时段事件合并周次）
func parseBusyEvents(reader io.Reader, window icsWindow, loc *time.Location) ([]busyEvent, int, error) {
	cal, err := ics.ParseCalendar(io.LimitReader(reader, icsMaxFileSize))
	if err != nil {
		return nil, 0, fmt.Errorf("ICS 格式解析失败: %w", err)
	}

	var events []busyEvent
	skipped := 0
	for _, comp := range cal.Events() {
		evt, ok := parseVEvent(comp, window, loc)
		if !ok {
			skipped++
			continue
		}
		events = append(events, evt)
	}
	return mergeEvents(events), skipped, nil
}

// blockedSlots 将忙碌事件映射到节次，返回不可用节次（按星期、节次排序）与未命中任何节次的事件数
func blockedSlots(events []busyEvent, periods []model.PeriodLabel) ([]model.TimeSlot, int) {
	set := make(map[model.TimeSlot]bool)
	missed := 0
	for _, e := range events {
		hit := false
		for _, p := range periods {
			// [start, end) 与 [p.Start, p.End) 有交集；HH:MM 可直接按字符串比较
			if e.StartTime < p.End && p.Start < e.EndTime {
				set[model.TimeSlot{Day: e.DayOfWeek, Period: p.Index}] = true
				hit = true
			}
		}
		if !hit {
			missed++
		}
	}

	out := make([]model.TimeSlot, 0, len(set))
	for ts := range set {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out, missed
}

// parseVEvent 解析单个 VEVENT 组件
func parseVEvent(evt *ics.VEvent, window icsWindow, loc *time.Location) (busyEvent, bool) {
	if transp := evt.GetProperty(ics.ComponentPropertyTransp); transp != nil && strings.EqualFold(transp.Value, "TRANSPARENT") {
		return busyEvent{}, false
	}
	name := ""
	if summary := evt.GetProperty(ics.ComponentPropertySummary); summary != nil {
		name = strings.TrimSpace(summary.Value)
	}

	dtStart, err := parseICSDateTime(evt, ics.ComponentPropertyDtStart, loc)
	if err != nil {
		return busyEvent{}, false
	}
	dtEnd, err := parseICSDateTime(evt, ics.ComponentPropertyDtEnd, loc)
	if err != nil {
		durProp := evt.GetProperty(ics.ComponentPropertyDuration)
		if durProp == nil {
			return busyEvent{}, false
		}
		d, err := parseICSDuration(durProp.Value)
		if err != nil {
			return busyEvent{}, false
		}
		dtEnd = dtStart.Add(d)
	}
	if !dtEnd.After(dtStart) {
		return busyEvent{}, false
	}

	// 跨天事件截断到当日结束
	endTime := dtEnd.Format("15:04")
	if dtEnd.YearDay() != dtStart.YearDay() || dtEnd.Year() != dtStart.Year() {
		endTime = "24:00"
	}

	var weeks []int
	if window.bounded() {
		weeks = computeWeeks(evt, dtStart, window, loc)
		if len(weeks) == 0 {
			return busyEvent{}, false
		}
	}

	return busyEvent{
		Name:      name,
		DayOfWeek: goWeekdayToISO(dtStart.Weekday()),
		StartTime: dtStart.Format("15:04"),
		EndTime:   endTime,
		Weeks:     weeks,
	}, true
}

// computeWeeks 根据 RRULE / EXDATE / 单次事件计算窗口内的周次列表
func computeWeeks(evt *ics.VEvent, dtStart time.Time, window icsWindow, loc *time.Location) []int {
	inWindow := func(wk int) bool { return wk >= 1 && wk <= window.Weeks }

	rruleProp := evt.GetProperty(ics.ComponentPropertyRrule)
	if rruleProp == nil {
		// 单次事件 → 仅当前周
		if wk := dateToWeekNumber(dtStart, window.Start); inWindow(wk) {
			return []int{wk}
		}
		return nil
	}

	rule := parseRRule(rruleProp.Value)
	if rule.freq != "WEEKLY" && rule.freq != "DAILY" {
		if wk := dateToWeekNumber(dtStart, window.Start); inWindow(wk) {
			return []int{wk}
		}
		return nil
	}
	// DAILY 事件每周都出现于同一星期；按周步进即可覆盖 DTSTART 所在的星期
	interval := rule.interval
	if interval < 1 || rule.freq == "DAILY" {
		interval = 1
	}

	exDates := parseExDates(evt, loc)
	weekSet := make(map[int]bool)
	var weeks []int

	maxDate := window.Start.AddDate(0, 0, window.Weeks*7)
	if !rule.until.IsZero() && rule.until.Before(maxDate) {
		maxDate = rule.until
	}

	count := 0
	for current := dtStart; !current.After(maxDate); current = current.AddDate(0, 0, 7*interval) {
		if rule.count > 0 && count >= rule.count {
			break
		}
		count++

		wk := dateToWeekNumber(current, window.Start)
		if !inWindow(wk) || exDates[current.Format("20060102")] || weekSet[wk] {
			continue
		}
		weekSet[wk] = true
		weeks = append(weeks, wk)
	}
	return weeks
}

// rruleParams RRULE 解析结果
type rruleParams struct {
	freq     string
	interval int
	count    int
	until    time.Time
}

// parseRRule 解析 RRULE 字符串（如 FREQ=WEEKLY;COUNT=16;INTERVAL=1）
func parseRRule(value string) rruleParams {
	r := rruleParams{interval: 1}
	for _, part := range strings.Split(value, ";") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToUpper(kv[0]) {
		case "FREQ":
			r.freq = strings.ToUpper(kv[1])
		case "INTERVAL":
			fmt.Sscanf(kv[1], "%d", &r.interval)
		case "COUNT":
			fmt.Sscanf(kv[1], "%d", &r.count)
		case "UNTIL":
			t, err := time.Parse("20060102T150405Z", kv[1])
			if err != nil {
				t, _ = time.Parse("20060102", kv[1])
			}
			r.until = t
		}
	}
	return r
}

// parseExDates 解析事件中所有 EXDATE（可能以逗号分隔多个日期）
func parseExDates(evt *ics.VEvent, loc *time.Location) map[string]bool {
	exDates := make(map[string]bool)
	for _, prop := range evt.Properties {
		if prop.IANAToken != string(ics.ComponentPropertyExdate) {
			continue
		}
		for _, v := range strings.Split(prop.Value, ",") {
			t, err := time.Parse("20060102T150405Z", v)
			if err != nil {
				t, err = time.ParseInLocation("20060102T150405", v, loc)
				if err != nil {
					t, err = time.ParseInLocation("20060102", v, loc)
				}
			}
			if err == nil {
				exDates[t.In(loc).Format("20060102")] = true
			}
		}
	}
	return exDates
}

// parseICSDuration 解析 DURATION（支持 PnW / PnDTnHnMnS）
func parseICSDuration(v string) (time.Duration, error) {
	s := strings.TrimPrefix(strings.ToUpper(strings.TrimSpace(v)), "+")
	if !strings.HasPrefix(s, "P") {
		return 0, fmt.Errorf("无法解析 DURATION: %s", v)
	}
	units := map[bool]map[rune]time.Duration{
		false: {'W': 7 * 24 * time.Hour, 'D': 24 * time.Hour},
		true:  {'H': time.Hour, 'M': time.Minute, 'S': time.Second},
	}
	var total time.Duration
	inTime, num, hasNum := false, 0, false
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
			num, hasNum = num*10+int(c-'0'), true
		case c == 'T' && !hasNum:
			inTime = true
		default:
			unit, ok := units[inTime][c]
			if !ok || !hasNum {
				return 0, fmt.Errorf("无法解析 DURATION: %s", v)
			}
			total += time.Duration(num) * unit
			num, hasNum = 0, false
		}
	}
	if total <= 0 || hasNum {
		return 0, fmt.Errorf("无法解析 DURATION: %s", v)
	}
	return total, nil
}

// mergeEvents 合并相同 (星期, 时段) 事件的周次
func mergeEvents(events []busyEvent) []busyEvent {
	type key struct {
		DayOfWeek int
		StartTime string
		EndTime   string
	}
	merged := make(map[key]*busyEvent)
	order := []key{}

	for _, e := range events {
		k := key{DayOfWeek: e.DayOfWeek, StartTime: e.StartTime, EndTime: e.EndTime}
		if existing, ok := merged[k]; ok {
			weekSet := make(map[int]bool)
			for _, w := range existing.Weeks {
				weekSet[w] = true
			}
			for _, w := range e.Weeks {
				if !weekSet[w] {
					existing.Weeks = append(existing.Weeks, w)
				}
			}
			sort.Ints(existing.Weeks)
		} else {
			cp := e
			merged[k] = &cp
			order = append(order, k)
		}
	}

	result := make([]busyEvent, 0, len(merged))
	for _, k := range order {
		result = append(result, *merged[k])
	}
	return result
}

// ── 辅助函数 ──

// goWeekdayToISO 将 Go 的 time.Weekday (0=Sunday) 转为 ISO 8601 (1=Monday … 7=Sunday)
func goWeekdayToISO(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// dateToWeekNumber 计算日期相对窗口起始的周次（1-based）
func dateToWeekNumber(date, start time.Time) int {
	d := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	days := int(d.Sub(s).Hours() / 24)
	if days < 0 {
		return 0
	}
	return days/7 + 1
}

// parseICSDateTime 从 VEVENT 中解析日期时间属性
func parseICSDateTime(evt *ics.VEvent, propName ics.ComponentProperty, loc *time.Location) (time.Time, error) {
	prop := evt.GetProperty(propName)
	if prop == nil {
		return time.Time{}, fmt.Errorf("missing property %s", propName)
	}
	val := prop.Value

	formats := []string{
		"20060102T150405Z",
		"20060102T150405",
		"20060102",
	}

	// 检查 TZID 参数
	tzid := ""
	for k, v := range prop.ICalParameters {
		if strings.ToUpper(k) == "TZID" && len(v) > 0 {
			tzid = v[0]
		}
	}

	for _, layout := range formats {
		t, err := time.Parse(layout, val)
		if err != nil {
			continue
		}
		if strings.HasSuffix(layout, "Z") {
			return t.In(loc), nil
		}
		if tzid != "" {
			if tzLoc, err := time.LoadLocation(tzid); err == nil {
				return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, tzLoc).In(loc), nil
			}
		}
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, loc), nil
	}

	return time.Time{}, fmt.Errorf("无法解析日期: %s", val)
}
