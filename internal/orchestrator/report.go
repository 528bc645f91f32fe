package orchestrator

import (
	"time"

	"github.com/iabetor/scriptvoice/internal/audio"
	"github.com/iabetor/scriptvoice/internal/logger"
)

// SegmentReport 是单个段落的处理结果，下游渲染环节按此列表消费音频。
type SegmentReport struct {
	Index     int
	Speaker   string
	Text      string
	Mood      string
	AudioPath string
	Duration  time.Duration
	State     State
	// Attempts 是最后一个文本块的实际调用次数（含重试）。
	Attempts int
	// Reason 是失败段落的诊断信息。
	Reason string
}

// Report 是一次批量运行的汇总结果。
type Report struct {
	RunID     string
	OutputDir string
	Succeeded int
	Failed    int
	// MergedPath 是完整合并音频的路径，未合并时为空。
	MergedPath string
	Segments   []SegmentReport
}

// probeDuration 探测产物时长，失败时只记日志不影响结果。
func probeDuration(path string) time.Duration {
	d, err := audio.Duration(path)
	if err != nil {
		logger.Warnf("[orchestrator] 时长探测失败 %s: %v", path, err)
		return 0
	}
	return d
}
