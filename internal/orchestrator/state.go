package orchestrator

import "github.com/iabetor/scriptvoice/internal/logger"

// State 表示单个段落在本次运行中的合成状态。
type State int

const (
	// StatePending — 尚未处理。
	StatePending State = iota
	// StateSkipped — 产物已存在，续传跳过。
	StateSkipped
	// StateSynthesizing — 正在调用后端合成。
	StateSynthesizing
	// StateRetrying — 上次调用失败，退避等待中。
	StateRetrying
	// StateSucceeded — 段落产物已落盘。
	StateSucceeded
	// StateFailed — 重试耗尽，段落放弃。
	StateFailed
)

var stateNames = [...]string{
	"Pending",
	"Skipped",
	"Synthesizing",
	"Retrying",
	"Succeeded",
	"Failed",
}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// Terminal 报告该状态是否为终态。
func (s State) Terminal() bool {
	return s == StateSkipped || s == StateSucceeded || s == StateFailed
}

// validTransition 检查段落状态转换是否合法：
//
//	Pending      → Skipped | Synthesizing
//	Synthesizing → Succeeded | Retrying | Failed
//	Retrying     → Synthesizing
func validTransition(from, to State) bool {
	switch from {
	case StatePending:
		return to == StateSkipped || to == StateSynthesizing
	case StateSynthesizing:
		return to == StateSucceeded || to == StateRetrying || to == StateFailed
	case StateRetrying:
		return to == StateSynthesizing
	}
	return false
}

// tracker 跟踪一个段落的状态，拒绝非法转换。
// 批次严格串行，无需加锁。
type tracker struct {
	index   int
	current State
}

func newTracker(index int) *tracker {
	return &tracker{index: index, current: StatePending}
}

// to 尝试切换状态。非法的转换不生效并记录告警。
// 切换到当前状态是空操作（多块段落会连续处于 Synthesizing）。
func (t *tracker) to(s State) bool {
	if s == t.current {
		return true
	}
	if !validTransition(t.current, s) {
		logger.Warnf("[orchestrator] 段落 %d 非法状态转换 %s → %s", t.index, t.current, s)
		return false
	}
	t.current = s
	return true
}
