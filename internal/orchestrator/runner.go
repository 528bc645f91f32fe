package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/iabetor/scriptvoice/internal/audio"
	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/logger"
	"github.com/iabetor/scriptvoice/internal/mood"
	"github.com/iabetor/scriptvoice/internal/provider"
	"github.com/iabetor/scriptvoice/internal/script"
)

// Runner 驱动一次批量合成：按文档顺序逐段续传检查、情绪解析、
// 超长切分、限流重试、分块合并，最后可选地拼出完整音频。
//
// 运行状态全部在 Runner 值和输出目录的产物文件里，不依赖包级变量。
// 产物文件（存在且非空）是唯一的完成标记：中断后重跑同一输出目录
// 即可续传。同一输出目录不可并发运行两个批次（无锁保护）。
type Runner struct {
	cfg       *config.Config
	engine    provider.Engine
	outputDir string
	runID     string

	// sleep 可在测试中替换，避免真实等待。
	sleep func(time.Duration)
}

// New 创建 Runner 并准备输出目录。
func New(cfg *config.Config, engine provider.Engine) (*Runner, error) {
	outputDir := cfg.Output.OutputDir
	if cfg.Output.UseTimestampSubdir {
		outputDir = filepath.Join(outputDir, time.Now().Format("20060102_150405"))
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("创建输出目录 %s 失败: %w", outputDir, err)
	}

	return &Runner{
		cfg:       cfg,
		engine:    engine,
		outputDir: outputDir,
		runID:     uuid.NewString()[:8],
		sleep:     time.Sleep,
	}, nil
}

// OutputDir 返回本次运行的输出目录。
func (r *Runner) OutputDir() string {
	return r.outputDir
}

// Run 处理全部段落。
func (r *Runner) Run(ctx context.Context, segments []script.Segment) (*Report, error) {
	return r.RunRange(ctx, segments, 1, 0)
}

// RunRange 只处理序号在 [start, end] 内的段落，end<=0 表示到最后。
// 配合续传标记可用于分批补跑。
func (r *Runner) RunRange(ctx context.Context, segments []script.Segment, start, end int) (*Report, error) {
	if end <= 0 {
		end = len(segments)
	}
	var target []script.Segment
	for _, seg := range segments {
		if seg.Index >= start && seg.Index <= end {
			target = append(target, seg)
		}
	}

	report := &Report{RunID: r.runID, OutputDir: r.outputDir}

	logger.Infof("[orchestrator] run %s: 后端=%s 共 %d 段（范围 %d-%d）",
		r.runID, r.cfg.Provider, len(target), start, end)

	// MOSS 对话模式：整场对话一次合成
	if de, ok := r.engine.(provider.DialogueEngine); ok && de.SupportsDialogue() {
		return r.runDialogue(ctx, de, target, report)
	}

	var artifacts []string
	for _, seg := range target {
		// 段落之间允许整批取消；续传机制保证重跑无损
		if err := ctx.Err(); err != nil {
			return report, err
		}

		rep := r.runSegment(ctx, seg, len(segments))
		report.Segments = append(report.Segments, rep)
		if rep.State == StateFailed {
			report.Failed++
			continue
		}
		report.Succeeded++
		artifacts = append(artifacts, rep.AudioPath)
	}

	logger.Infof("[orchestrator] run %s: 完成，成功 %d 段，失败 %d 段，输出目录 %s",
		r.runID, report.Succeeded, report.Failed, r.outputDir)

	// 只有一段成功时没有可合并的内容
	if r.cfg.Output.MergeAudio && len(artifacts) > 1 {
		finalPath := filepath.Join(r.outputDir, r.cfg.Output.Prefix+"_complete.wav")
		if artifactExists(finalPath) {
			logger.Infof("[orchestrator] 合并文件已存在: %s", finalPath)
			report.MergedPath = finalPath
		} else if err := audio.Merge(artifacts, finalPath, r.cfg.Output.SilenceBetween); err != nil {
			logger.Errorf("[orchestrator] 完整合并失败: %v", err)
		} else {
			logger.Infof("[orchestrator] 合并完成: %s", finalPath)
			report.MergedPath = finalPath
		}
	}

	return report, nil
}

// runSegment 处理单个段落，返回它的处理结果。
// 任何失败都不会中断批次，只体现在结果里。
func (r *Runner) runSegment(ctx context.Context, seg script.Segment, total int) SegmentReport {
	rep := SegmentReport{
		Index:   seg.Index,
		Speaker: string(seg.Speaker),
		Text:    seg.Text,
		Mood:    string(seg.Mood),
	}

	tr := newTracker(seg.Index)
	segPath := r.segmentPath(seg)

	// 续传检查：产物存在且非空即视为完成
	if artifactExists(segPath) {
		tr.to(StateSkipped)
		logger.Infof("[orchestrator] [%d/%d] 已存在，跳过: %s", seg.Index, total, filepath.Base(segPath))
		rep.State = StateSkipped
		rep.AudioPath = segPath
		rep.Duration = probeDuration(segPath)
		return rep
	}

	logger.Infof("[orchestrator] [%d/%d] %s [%s]: %s",
		seg.Index, total, seg.Speaker, seg.Mood, truncate(seg.Text, 40))

	vp := r.cfg.Voices.ForSpeaker(string(seg.Speaker))
	if r.cfg.Mood.Enable {
		vp = mood.Resolve(vp, seg.Mood, r.cfg.Provider, mood.Options{
			UseTextMood:    r.cfg.Emotion.UseEmotion,
			PassBaseParams: r.cfg.Emotion.PassVoiceParams,
		})
	}

	chunks := script.Chunks(seg, r.cfg.TextProcessing.MaxTextLength)

	var chunkFiles []string
	for _, chunk := range chunks {
		outPath := segPath
		if len(chunks) > 1 {
			outPath = r.chunkPath(seg, chunk.Ordinal)
		}

		attempts, reason, ok := r.synthesizeChunk(ctx, tr, chunk, vp, outPath)
		rep.Attempts = attempts
		if !ok {
			tr.to(StateFailed)
			logger.Errorf("[orchestrator] 段落 %d（%s）失败，共尝试 %d 次: %s",
				seg.Index, seg.Speaker, attempts, reason)
			rep.State = StateFailed
			rep.Reason = reason
			return rep
		}
		chunkFiles = append(chunkFiles, outPath)

		// 请求间隔延迟，避免触发后端限流
		r.sleep(secs(r.cfg.RateLimit.DelaySecs))
	}

	// 多块段落合并为规范路径，随后删除临时分块
	if len(chunkFiles) > 1 {
		if err := audio.Merge(chunkFiles, segPath, r.cfg.Output.SegmentGap); err != nil {
			tr.to(StateFailed)
			rep.State = StateFailed
			rep.Reason = fmt.Sprintf("分块合并失败: %v", err)
			return rep
		}
		for _, f := range chunkFiles {
			if err := os.Remove(f); err != nil {
				logger.Warnf("[orchestrator] 删除临时分块失败 %s: %v", f, err)
			}
		}
	}

	tr.to(StateSucceeded)
	rep.State = StateSucceeded
	rep.AudioPath = segPath
	rep.Duration = probeDuration(segPath)
	logger.Infof("[orchestrator] [%d/%d] 已生成: %s", seg.Index, total, filepath.Base(segPath))
	return rep
}

// synthesizeChunk 合成单个文本块并落盘，失败时按线性退避重试。
// 返回实际调用次数、失败原因与是否成功；重试计数以块为单位。
func (r *Runner) synthesizeChunk(ctx context.Context, tr *tracker, chunk script.Chunk, vp config.VoiceProfile, outPath string) (int, string, bool) {
	maxRetries := r.cfg.RateLimit.MaxRetries

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			tr.to(StateRetrying)
			wait := secs(r.cfg.RateLimit.RetryDelaySecs * float64(attempt))
			logger.Infof("[orchestrator] 段落 %d 块 %d: 等待 %v 后第 %d 次重试",
				chunk.SegmentIndex, chunk.Ordinal, wait, attempt)
			r.sleep(wait)
		}
		tr.to(StateSynthesizing)

		res := r.engine.Synthesize(ctx, chunk.Text, vp)
		if res.OK {
			if err := audio.WriteFileAtomic(outPath, res.Audio); err != nil {
				return attempt + 1, fmt.Sprintf("写入产物失败: %v", err), false
			}
			return attempt + 1, "", true
		}

		logger.Warnf("[orchestrator] 段落 %d 块 %d 第 %d 次合成失败: %s",
			chunk.SegmentIndex, chunk.Ordinal, attempt+1, res.Reason)
		if attempt >= maxRetries {
			return attempt + 1, res.Reason, false
		}
	}
}

// runDialogue 把整场对话一次性提交给支持对话合成的后端。
func (r *Runner) runDialogue(ctx context.Context, de provider.DialogueEngine, segments []script.Segment, report *Report) (*Report, error) {
	outPath := filepath.Join(r.outputDir, r.cfg.Output.Prefix+"_dialogue_combined.wav")

	logger.Infof("[orchestrator] run %s: 对话合成模式，共 %d 轮", r.runID, len(segments))

	if artifactExists(outPath) {
		logger.Infof("[orchestrator] 已存在，跳过: %s", filepath.Base(outPath))
		report.Succeeded = 1
		report.MergedPath = outPath
		return report, nil
	}

	res := de.SynthesizeDialogue(ctx, segments, r.cfg.Voices.Primary)
	if !res.OK {
		logger.Errorf("[orchestrator] 对话合成失败: %s", res.Reason)
		report.Failed = 1
		return report, nil
	}
	if err := audio.WriteFileAtomic(outPath, res.Audio); err != nil {
		logger.Errorf("[orchestrator] 对话音频写入失败: %v", err)
		report.Failed = 1
		return report, nil
	}

	logger.Infof("[orchestrator] 对话音频已生成: %s", outPath)
	report.Succeeded = 1
	report.MergedPath = outPath
	return report, nil
}

// segmentPath 返回段落的规范产物路径: <prefix>_<index:3位>_<speaker>.wav
func (r *Runner) segmentPath(seg script.Segment) string {
	return filepath.Join(r.outputDir,
		fmt.Sprintf("%s_%03d_%s.wav", r.cfg.Output.Prefix, seg.Index, seg.Speaker))
}

// chunkPath 返回临时分块路径: <prefix>_<index:3位>_<speaker>_part<N>.wav
func (r *Runner) chunkPath(seg script.Segment, ordinal int) string {
	return filepath.Join(r.outputDir,
		fmt.Sprintf("%s_%03d_%s_part%d.wav", r.cfg.Output.Prefix, seg.Index, seg.Speaker, ordinal))
}

// artifactExists 报告产物是否已完整生成（存在且非空）。
func artifactExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
