package check

import (
	"context"
	"strings"
	"time"

	"katydid-common-contract/pkg/validator/core"
)

const (
	NameFuture    = "future"
	NamePast      = "past"
	NameDateRange = "daterange"
)

// Clock 当前时间来源，测试中可替换
type Clock func() time.Time

// Future 时间必须晚于当前时间（允许 Tolerance 误差）
type Future struct {
	core.Settings
	Tolerance time.Duration
	Now       Clock
}

func NewFuture() *Future {
	return &Future{Settings: core.NewSettings(NameFuture), Now: time.Now}
}

func (c *Future) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	t, ok := core.ToTime(value)
	if !ok {
		return true, nil
	}
	return t.After(c.Now().Add(-c.Tolerance)), nil
}

func buildFuture(args Args) (core.Check, error) {
	c := NewFuture()
	ms, err := args.Int(NameFuture, "tolerance", 0, 0)
	if err != nil {
		return nil, err
	}
	c.Tolerance = time.Duration(ms) * time.Millisecond
	return c, nil
}

// Past 时间必须早于当前时间（允许 Tolerance 误差）
type Past struct {
	core.Settings
	Tolerance time.Duration
	Now       Clock
}

func NewPast() *Past {
	return &Past{Settings: core.NewSettings(NamePast), Now: time.Now}
}

func (c *Past) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	t, ok := core.ToTime(value)
	if !ok {
		return true, nil
	}
	return t.Before(c.Now().Add(c.Tolerance)), nil
}

func buildPast(args Args) (core.Check, error) {
	c := NewPast()
	ms, err := args.Int(NamePast, "tolerance", 0, 0)
	if err != nil {
		return nil, err
	}
	c.Tolerance = time.Duration(ms) * time.Millisecond
	return c, nil
}

// DateRange 时间必须在 [Min, Max] 之间
// 边界支持关键字 now、today、yesterday、tomorrow，以及 RFC3339 或 2006-01-02 格式
type DateRange struct {
	core.Settings
	Min       string
	Max       string
	Tolerance time.Duration
	Now       Clock
}

// NewDateRange 创建时间范围校验，边界格式在创建时检查
func NewDateRange(min, max string) (*DateRange, error) {
	c := &DateRange{Settings: core.NewSettings(NameDateRange), Min: min, Max: max, Now: time.Now}
	for _, bound := range []string{min, max} {
		if bound == "" {
			continue
		}
		if _, err := c.resolve(bound, false); err != nil {
			return nil, core.InvalidConfiguration(NameDateRange, "invalid bound %q: %v", bound, err)
		}
	}
	return c, nil
}

func (c *DateRange) IsSatisfied(_ context.Context, _, value any, _ core.Context) (bool, error) {
	t, ok := core.ToTime(value)
	if !ok {
		return true, nil
	}
	if c.Min != "" {
		min, err := c.resolve(c.Min, false)
		if err != nil {
			return false, err
		}
		if t.Before(min.Add(-c.Tolerance)) {
			return false, nil
		}
	}
	if c.Max != "" {
		max, err := c.resolve(c.Max, true)
		if err != nil {
			return false, err
		}
		if t.After(max.Add(c.Tolerance)) {
			return false, nil
		}
	}
	return true, nil
}

// resolve 解析边界；upper 为 true 时按天的关键字取当天结束时刻
func (c *DateRange) resolve(bound string, upper bool) (time.Time, error) {
	now := c.Now()
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	endOfDay := func(d time.Time) time.Time {
		if upper {
			return d.Add(24*time.Hour - time.Nanosecond)
		}
		return d
	}

	switch strings.ToLower(bound) {
	case "now":
		return now, nil
	case "today":
		return endOfDay(day), nil
	case "yesterday":
		return endOfDay(day.AddDate(0, 0, -1)), nil
	case "tomorrow":
		return endOfDay(day.AddDate(0, 0, 1)), nil
	}
	if t, err := time.Parse(time.RFC3339, bound); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, bound, now.Location())
	if err != nil {
		return time.Time{}, err
	}
	return endOfDay(t), nil
}

func (c *DateRange) MessageVariables() map[string]string {
	return map[string]string{"min": c.Min, "max": c.Max}
}

func buildDateRange(args Args) (core.Check, error) {
	c, err := NewDateRange(args.String("min", 0, ""), args.String("max", 1, ""))
	if err != nil {
		return nil, err
	}
	ms, err := args.Int(NameDateRange, "tolerance", 2, 0)
	if err != nil {
		return nil, err
	}
	c.Tolerance = time.Duration(ms) * time.Millisecond
	return c, nil
}
