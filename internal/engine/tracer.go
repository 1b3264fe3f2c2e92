package engine

import (
	"go.uber.org/zap"

	"github.com/sujith-eag/timetable-builder/internal/model"
)

// Tracer 搜索过程观察者
// depth 为决策栈深度（从 1 开始）；撤销严格按放置的逆序发生
type Tracer interface {
	OnPlace(depth int, p model.Placement)
	OnUndo(depth int, p model.Placement)
}

type noopTracer struct{}

func (noopTracer) OnPlace(int, model.Placement) {}
func (noopTracer) OnUndo(int, model.Placement)  {}

// LogTracer 以 debug 级别记录每次放置/撤销
type LogTracer struct {
	logger *zap.Logger
}

// NewLogTracer 创建日志 Tracer
func NewLogTracer(logger *zap.Logger) *LogTracer {
	return &LogTracer{logger: logger}
}

func (t *LogTracer) OnPlace(depth int, p model.Placement) {
	t.write("place", depth, p)
}

func (t *LogTracer) OnUndo(depth int, p model.Placement) {
	t.write("undo", depth, p)
}

func (t *LogTracer) write(msg string, depth int, p model.Placement) {
	if ce := t.logger.Check(zap.DebugLevel, msg); ce != nil {
		ce.Write(
			zap.Int("depth", depth),
			zap.String("session_id", p.SessionID),
			zap.Stringer("start", p.Start),
			zap.String("room_id", p.RoomID),
			zap.String("instructor_id", p.InstructorID),
		)
	}
}
