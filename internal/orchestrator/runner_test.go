package orchestrator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iabetor/scriptvoice/internal/audio"
	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/provider"
	"github.com/iabetor/scriptvoice/internal/script"
)

var testWAVFormat = audio.Format{Channels: 1, SampleWidth: 2, SampleRate: 16000}

// wavBytes 生成一段可解析的 WAV 数据作为假的合成结果。
func wavBytes(samples ...int16) []byte {
	return audio.EncodeWAV(testWAVFormat, audio.Int16ToBytes(samples))
}

// stubEngine 按预设函数返回合成结果，并记录每次调用的文本。
type stubEngine struct {
	calls int
	texts []string
	fn    func(call int, text string) provider.Result
}

func (s *stubEngine) Synthesize(ctx context.Context, text string, vp config.VoiceProfile) provider.Result {
	s.calls++
	s.texts = append(s.texts, text)
	return s.fn(s.calls, text)
}

func alwaysOK(audio []byte) func(int, string) provider.Result {
	return func(int, string) provider.Result {
		return provider.Result{Audio: audio, OK: true}
	}
}

func testConfig(dir string) *config.Config {
	return &config.Config{
		Provider:       config.ProviderQwen,
		RateLimit:      config.RateLimitConfig{DelaySecs: 0.001, MaxRetries: 2, RetryDelaySecs: 1.0},
		Mood:           config.MoodConfig{Enable: true},
		Emotion:        config.EmotionConfig{UseEmotion: true, DefaultEmotion: "gentle"},
		TextProcessing: config.TextProcessingConfig{MaxTextLength: 500},
		Output: config.OutputConfig{
			OutputDir:      dir,
			Prefix:         "test",
			SilenceBetween: 0.5,
			SegmentGap:     0.2,
		},
	}
}

// newTestRunner 创建输出到临时目录的 Runner，sleep 只记录不等待。
func newTestRunner(t *testing.T, cfg *config.Config, engine provider.Engine) (*Runner, *[]time.Duration) {
	t.Helper()
	r, err := New(cfg, engine)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	var slept []time.Duration
	r.sleep = func(d time.Duration) { slept = append(slept, d) }
	return r, &slept
}

func segs(texts ...string) []script.Segment {
	out := make([]script.Segment, len(texts))
	for i, text := range texts {
		speaker := script.SpeakerPrimary
		if i%2 == 1 {
			speaker = script.SpeakerSecondary
		}
		out[i] = script.Segment{Index: i + 1, Speaker: speaker, Text: text, Mood: "gentle"}
	}
	return out
}

func TestRun_SingleSegment(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Output.MergeAudio = true
	eng := &stubEngine{fn: alwaysOK(wavBytes(1, 2, 3))}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("大家好。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Succeeded != 1 || report.Failed != 0 {
		t.Fatalf("succeeded/failed = %d/%d, want 1/0", report.Succeeded, report.Failed)
	}
	if eng.calls != 1 {
		t.Errorf("engine called %d times, want 1", eng.calls)
	}

	path := filepath.Join(dir, "test_001_primary.wav")
	if !artifactExists(path) {
		t.Fatalf("artifact missing: %s", path)
	}
	rep := report.Segments[0]
	if rep.State != StateSucceeded || rep.Attempts != 1 || rep.AudioPath != path {
		t.Errorf("segment report = %+v", rep)
	}
	if report.MergedPath != "" {
		t.Error("no merge expected for a single segment")
	}
}

func TestRun_MergesArtifacts(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Output.MergeAudio = true
	eng := &stubEngine{fn: alwaysOK(wavBytes(1, 2))}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("第一句。", "第二句。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.MergedPath == "" {
		t.Fatal("merged path not set")
	}
	if filepath.Base(report.MergedPath) != "test_complete.wav" {
		t.Errorf("merged path = %s", report.MergedPath)
	}

	f, frames, err := audio.ReadWAV(report.MergedPath)
	if err != nil {
		t.Fatalf("read merged: %v", err)
	}
	if f != testWAVFormat {
		t.Errorf("merged format = %s", f)
	}
	// 两段各 2 个样本 + 0.5 秒静音
	want := 2*2*2 + len(audio.SilenceBytes(testWAVFormat, 0.5))
	if len(frames) != want {
		t.Errorf("merged frames = %d bytes, want %d", len(frames), want)
	}
}

func TestRun_ResumeSkipsExisting(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Output.MergeAudio = true

	// 预置第 1、2 段的产物，模拟被中断后的重跑
	for _, name := range []string{"test_001_primary.wav", "test_002_secondary.wav"} {
		if err := os.WriteFile(filepath.Join(dir, name), wavBytes(9, 9), 0644); err != nil {
			t.Fatal(err)
		}
	}

	eng := &stubEngine{fn: alwaysOK(wavBytes(1, 2))}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("第一句。", "第二句。", "第三句。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if eng.calls != 1 {
		t.Fatalf("engine called %d times, want 1 (only the missing segment)", eng.calls)
	}
	if eng.texts[0] != "第三句。" {
		t.Errorf("synthesized text = %q", eng.texts[0])
	}
	if report.Succeeded != 3 {
		t.Errorf("succeeded = %d, want 3", report.Succeeded)
	}
	if report.Segments[0].State != StateSkipped || report.Segments[1].State != StateSkipped {
		t.Error("existing segments should be skipped")
	}
	if report.Segments[2].State != StateSucceeded {
		t.Error("missing segment should be synthesized")
	}
	// 合并覆盖全部三段，按文档顺序
	if report.MergedPath == "" {
		t.Fatal("merged path not set")
	}
	_, frames, err := audio.ReadWAV(report.MergedPath)
	if err != nil {
		t.Fatal(err)
	}
	want := 3*2*2 + 2*len(audio.SilenceBytes(testWAVFormat, 0.5))
	if len(frames) != want {
		t.Errorf("merged frames = %d bytes, want %d", len(frames), want)
	}
}

func TestRun_LinearBackoffRetry(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	eng := &stubEngine{fn: func(call int, _ string) provider.Result {
		if call < 3 {
			return provider.Result{Reason: "backend busy"}
		}
		return provider.Result{Audio: wavBytes(1), OK: true}
	}}
	r, slept := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("你好。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("succeeded = %d, report: %+v", report.Succeeded, report.Segments)
	}
	if got := report.Segments[0].Attempts; got != 3 {
		t.Errorf("attempts = %d, want 3", got)
	}

	// 退避等待线性递增：1×retry_delay、2×retry_delay
	var backoffs []time.Duration
	for _, d := range *slept {
		if d >= time.Second {
			backoffs = append(backoffs, d)
		}
	}
	if len(backoffs) != 2 || backoffs[0] != time.Second || backoffs[1] != 2*time.Second {
		t.Errorf("backoff waits = %v, want [1s 2s]", backoffs)
	}
}

func TestRun_FailSoft(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.RateLimit.MaxRetries = 1
	eng := &stubEngine{fn: func(call int, text string) provider.Result {
		if text == "坏段落。" {
			return provider.Result{Reason: "always fails"}
		}
		return provider.Result{Audio: wavBytes(1), OK: true}
	}}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("第一句。", "坏段落。", "第三句。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Succeeded != 2 || report.Failed != 1 {
		t.Fatalf("succeeded/failed = %d/%d, want 2/1", report.Succeeded, report.Failed)
	}

	bad := report.Segments[1]
	if bad.State != StateFailed {
		t.Errorf("bad segment state = %s", bad.State)
	}
	if bad.Attempts != 2 {
		t.Errorf("bad segment attempts = %d, want 2 (1 + 1 retry)", bad.Attempts)
	}
	if !strings.Contains(bad.Reason, "always fails") {
		t.Errorf("reason = %q", bad.Reason)
	}
	// 失败段之后的段落照常处理
	if report.Segments[2].State != StateSucceeded {
		t.Error("segment after failure should still be processed")
	}
}

func TestRun_LongSegmentChunked(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.TextProcessing.MaxTextLength = 4
	eng := &stubEngine{fn: alwaysOK(wavBytes(5, 6))}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("你好。世界！再见。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if report.Succeeded != 1 {
		t.Fatalf("succeeded = %d, report: %+v", report.Succeeded, report.Segments)
	}
	if eng.calls != 3 {
		t.Errorf("engine called %d times, want 3 chunks", eng.calls)
	}

	// 规范产物存在，临时分块已清理
	if !artifactExists(filepath.Join(dir, "test_001_primary.wav")) {
		t.Error("canonical artifact missing")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), "_part") {
			t.Errorf("chunk file not cleaned up: %s", e.Name())
		}
	}

	// 合并结果 = 3 块样本 + 2 处块间静音
	_, frames, err := audio.ReadWAV(filepath.Join(dir, "test_001_primary.wav"))
	if err != nil {
		t.Fatal(err)
	}
	want := 3*2*2 + 2*len(audio.SilenceBytes(testWAVFormat, 0.2))
	if len(frames) != want {
		t.Errorf("merged frames = %d bytes, want %d", len(frames), want)
	}
}

func TestRunRange_Filters(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	eng := &stubEngine{fn: alwaysOK(wavBytes(1))}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.RunRange(context.Background(), segs("一。", "二。", "三。", "四。"), 2, 3)
	if err != nil {
		t.Fatalf("RunRange failed: %v", err)
	}
	if len(report.Segments) != 2 {
		t.Fatalf("processed %d segments, want 2", len(report.Segments))
	}
	if report.Segments[0].Index != 2 || report.Segments[1].Index != 3 {
		t.Errorf("processed indices = %d, %d", report.Segments[0].Index, report.Segments[1].Index)
	}
	if eng.texts[0] != "二。" || eng.texts[1] != "三。" {
		t.Errorf("synthesized texts = %v", eng.texts)
	}
}

func TestRun_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	eng := &stubEngine{fn: alwaysOK(wavBytes(1))}
	r, _ := newTestRunner(t, cfg, eng)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, segs("你好。"))
	if err == nil {
		t.Fatal("expected context error")
	}
	if eng.calls != 0 {
		t.Errorf("engine called %d times after cancellation", eng.calls)
	}
}

// stubDialogueEngine 模拟支持整场对话合成的后端。
type stubDialogueEngine struct {
	stubEngine
	dialogueCalls int
	gotSegments   []script.Segment
	result        provider.Result
}

func (s *stubDialogueEngine) SupportsDialogue() bool { return true }

func (s *stubDialogueEngine) SynthesizeDialogue(ctx context.Context, segments []script.Segment, vp config.VoiceProfile) provider.Result {
	s.dialogueCalls++
	s.gotSegments = segments
	return s.result
}

func TestRun_DialogueMode(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	eng := &stubDialogueEngine{result: provider.Result{Audio: wavBytes(1, 2), OK: true}}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("大家好。", "主持人好。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if eng.dialogueCalls != 1 || eng.calls != 0 {
		t.Fatalf("dialogue/segment calls = %d/%d, want 1/0", eng.dialogueCalls, eng.calls)
	}
	if len(eng.gotSegments) != 2 {
		t.Errorf("dialogue received %d segments, want 2", len(eng.gotSegments))
	}

	want := filepath.Join(dir, "test_dialogue_combined.wav")
	if report.MergedPath != want {
		t.Errorf("merged path = %s, want %s", report.MergedPath, want)
	}
	if !artifactExists(want) {
		t.Error("dialogue artifact missing")
	}
}

func TestRun_DialogueResume(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig(dir)
	path := filepath.Join(dir, "test_dialogue_combined.wav")
	if err := os.WriteFile(path, wavBytes(1), 0644); err != nil {
		t.Fatal(err)
	}

	eng := &stubDialogueEngine{result: provider.Result{Audio: wavBytes(1), OK: true}}
	r, _ := newTestRunner(t, cfg, eng)

	report, err := r.Run(context.Background(), segs("大家好。"))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if eng.dialogueCalls != 0 {
		t.Errorf("dialogue called %d times, want 0 (artifact exists)", eng.dialogueCalls)
	}
	if report.MergedPath != path {
		t.Errorf("merged path = %s", report.MergedPath)
	}
}

func TestArtifactExists(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "missing.wav")
	if artifactExists(missing) {
		t.Error("missing file should not count as artifact")
	}

	empty := filepath.Join(dir, "empty.wav")
	if err := os.WriteFile(empty, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if artifactExists(empty) {
		t.Error("empty file should not count as artifact")
	}

	full := filepath.Join(dir, "full.wav")
	if err := os.WriteFile(full, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	if !artifactExists(full) {
		t.Error("non-empty file should count as artifact")
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("短", 40); got != "短" {
		t.Errorf("truncate short = %q", got)
	}
	long := strings.Repeat("长", 50)
	got := truncate(long, 40)
	if got != strings.Repeat("长", 40)+"..." {
		t.Errorf("truncate long = %q", got)
	}
}
