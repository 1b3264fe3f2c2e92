package model

import (
	"database/sql/driver"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ── PostgreSQL 数组自定义类型 ──

// IntArray 对应 PostgreSQL INT[] 类型，实现 GORM Scanner/Valuer 接口。
type IntArray []int

// Scan 将 PostgreSQL 返回的 {1,2,3} 文本解析为 []int。
func (a *IntArray) Scan(src interface{}) error {
	s, isNull, err := arrayText("IntArray", src)
	if err != nil || isNull {
		*a = nil
		return err
	}
	if s == "" {
		*a = IntArray{}
		return nil
	}
	parts := strings.Split(s, ",")
	arr := make(IntArray, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return fmt.Errorf("IntArray.Scan: invalid element %q: %w", p, err)
		}
		arr = append(arr, n)
	}
	*a = arr
	return nil
}

// Value 将 []int 序列化为 PostgreSQL {1,2,3} 文本。
func (a IntArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	parts := make([]string, len(a))
	for i, n := range a {
		parts[i] = strconv.Itoa(n)
	}
	return "{" + strings.Join(parts, ",") + "}", nil
}

// StringArray 对应 PostgreSQL TEXT[] 类型
// 元素仅限 ID 一类不含逗号、引号与花括号的简单字符串
type StringArray []string

// Scan 将 {a,b,c} 文本解析为 []string
func (a *StringArray) Scan(src interface{}) error {
	s, isNull, err := arrayText("StringArray", src)
	if err != nil || isNull {
		*a = nil
		return err
	}
	if s == "" {
		*a = StringArray{}
		return nil
	}
	parts := strings.Split(s, ",")
	arr := make(StringArray, 0, len(parts))
	for _, p := range parts {
		arr = append(arr, strings.Trim(strings.TrimSpace(p), `"`))
	}
	*a = arr
	return nil
}

// Value 将 []string 序列化为 {a,b,c} 文本
func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return nil, nil
	}
	for _, s := range a {
		if strings.ContainsAny(s, `,{}"`) {
			return nil, fmt.Errorf("StringArray.Value: unsupported element %q", s)
		}
	}
	return "{" + strings.Join(a, ",") + "}", nil
}

func arrayText(typ string, src interface{}) (string, bool, error) {
	switch v := src.(type) {
	case nil:
		return "", true, nil
	case []byte:
		return strings.Trim(string(v), "{}"), false, nil
	case string:
		return strings.Trim(v, "{}"), false, nil
	default:
		return "", false, fmt.Errorf("%s.Scan: unsupported type %T", typ, src)
	}
}

// BaseModel 通用审计字段（所有持久化记录嵌入）
// CreatedBy 为 Token 的 Subject
type BaseModel struct {
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	CreatedBy string    `gorm:"size:128"                           json:"created_by,omitempty"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}
