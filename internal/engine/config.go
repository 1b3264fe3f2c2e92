package engine

import (
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Config 单次求解的配置
type Config struct {
	// MaxBacktracks 回溯次数上限：<0 不限，0 表示不允许任何回溯
	MaxBacktracks int `json:"max_backtracks"`
	// WallClockLimit 墙钟时间上限，0 不限
	WallClockLimit time.Duration `json:"wall_clock_limit"`
	// RandomSeed 同代价候选的打散种子，0 保持基础顺序
	RandomSeed int64 `json:"random_seed"`
	// SoftConstraintWeight 软约束权重，未列出的约束权重为 1，权重 0 表示停用
	SoftConstraintWeight map[string]float64 `json:"soft_constraint_weight,omitempty"`
	// Improve 找到第一个完整解后继续分支定界以降低惩罚分
	Improve bool `json:"improve"`

	Tracer Tracer      `json:"-"`
	Logger *zap.Logger `json:"-"`
}

// DefaultConfig 默认配置
func DefaultConfig() Config {
	return Config{
		MaxBacktracks:  100000,
		WallClockLimit: 30 * time.Second,
		Improve:        true,
	}
}

// Validate 校验配置
func (c Config) Validate() error {
	if c.WallClockLimit < 0 {
		return fmt.Errorf("%w: wall_clock_limit 不能为负数", ErrInvalidConfig)
	}
	for id, w := range c.SoftConstraintWeight {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: 软约束 %s 的权重必须为非负有限数", ErrInvalidConfig, id)
		}
	}
	return nil
}

// weight 先精确匹配，再忽略大小写匹配（viper 会把键名转成小写）
func (c Config) weight(id string) float64 {
	if w, ok := c.SoftConstraintWeight[id]; ok {
		return w
	}
	for k, w := range c.SoftConstraintWeight {
		if strings.EqualFold(k, id) {
			return w
		}
	}
	return 1
}

func (c Config) logger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c Config) tracer() Tracer {
	if c.Tracer == nil {
		return noopTracer{}
	}
	return c.Tracer
}
