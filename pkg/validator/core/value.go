package core

import (
	"fmt"
	"reflect"
	"strconv"
	"time"
	"unicode/utf8"
)

// Indirect 解引用指针和接口
// 第二个返回值为 false 表示值为 nil（包括 nil 指针、nil map、nil slice）
func Indirect(value any) (reflect.Value, bool) {
	if value == nil {
		return reflect.Value{}, false
	}
	return IndirectValue(reflect.ValueOf(value))
}

// IndirectValue 对 reflect.Value 执行 Indirect
func IndirectValue(rv reflect.Value) (reflect.Value, bool) {
	for rv.IsValid() && (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) {
		if rv.IsNil() {
			return rv, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return rv, false
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		if rv.IsNil() {
			return rv, false
		}
	}
	return rv, true
}

// IsNil 值是否为 nil
func IsNil(value any) bool {
	_, ok := Indirect(value)
	return !ok
}

// IsContainer slice、array 和 map 视为容器（[]byte 除外）
func IsContainer(rv reflect.Value) bool {
	switch rv.Kind() {
	case reflect.Map, reflect.Array:
		return true
	case reflect.Slice:
		return rv.Type().Elem().Kind() != reflect.Uint8
	default:
		return false
	}
}

// Size 返回字符串的字符数或容器的元素数
func Size(value any) (int, bool) {
	rv, ok := Indirect(value)
	if !ok {
		return 0, false
	}
	switch rv.Kind() {
	case reflect.String:
		return utf8.RuneCountInString(rv.String()), true
	case reflect.Slice, reflect.Array, reflect.Map, reflect.Chan:
		return rv.Len(), true
	}
	if s, ok := ToString(value); ok {
		return utf8.RuneCountInString(s), true
	}
	return 0, false
}

// ToString 把字符串类值转换为 string
// 支持 string 底层类型、[]byte、fmt.Stringer
func ToString(value any) (string, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case []byte:
		return string(v), true
	case fmt.Stringer:
		if IsNil(value) {
			return "", false
		}
		return v.String(), true
	}
	rv, ok := Indirect(value)
	if !ok {
		return "", false
	}
	if rv.Kind() == reflect.String {
		return rv.String(), true
	}
	if rv.CanInterface() {
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return s.String(), true
		}
	}
	return "", false
}

// ToFloat 把数值类值转换为 float64
// 字符串会尝试按十进制解析
func ToFloat(value any) (float64, bool) {
	rv, ok := Indirect(value)
	if !ok {
		return 0, false
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	case reflect.String:
		f, err := strconv.ParseFloat(rv.String(), 64)
		return f, err == nil
	}
	return 0, false
}

// ToTime 把时间类值转换为 time.Time
func ToTime(value any) (time.Time, bool) {
	rv, ok := Indirect(value)
	if !ok || !rv.CanInterface() {
		return time.Time{}, false
	}
	t, ok := rv.Interface().(time.Time)
	return t, ok
}

// Interface 安全地取出 reflect.Value 中的值，未导出字段返回 nil
func Interface(rv reflect.Value) any {
	if !rv.IsValid() || !rv.CanInterface() {
		return nil
	}
	return rv.Interface()
}
