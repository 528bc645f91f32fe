package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/script"
)

// Result 是一次合成调用的结果。
// 适配器边界内的所有错误（网络、解码、后端报错）都折叠为
// OK=false + 可读的 Reason，不向调用方抛出异常。
type Result struct {
	Audio  []byte
	OK     bool
	Reason string
}

// Engine 定义语音合成后端接口。
type Engine interface {
	// Synthesize 将一段文本按音色配置转换为音频字节。
	Synthesize(ctx context.Context, text string, vp config.VoiceProfile) Result
}

// DialogueEngine 是支持联合多说话人合成的后端：
// 整场对话一次提交，输出单个音频。
type DialogueEngine interface {
	Engine
	// SupportsDialogue 报告当前模型是否支持对话合成。
	SupportsDialogue() bool
	// SynthesizeDialogue 一次性合成整段对话。
	SynthesizeDialogue(ctx context.Context, segments []script.Segment, vp config.VoiceProfile) Result
}

// New 根据配置创建合成后端。
// 后端集合是封闭的；未知名称与缺失凭据都是致命配置错误。
func New(cfg *config.Config) (Engine, error) {
	client := &http.Client{Timeout: time.Duration(cfg.API.TimeoutSecs) * time.Second}

	switch cfg.Provider {
	case config.ProviderQwen:
		return NewQwenEngine(cfg.API, client)
	case config.ProviderSiliconFlow:
		return NewSiliconFlowEngine(cfg.API, client)
	case config.ProviderMiniMax:
		return NewMiniMaxEngine(cfg.API, client)
	case config.ProviderEdge:
		return NewEdgeEngine(cfg.Edge.Voice), nil
	}
	return nil, fmt.Errorf("不支持的合成后端: %s", cfg.Provider)
}

func success(audio []byte) Result {
	return Result{Audio: audio, OK: true}
}

func failure(format string, args ...interface{}) Result {
	return Result{Reason: fmt.Sprintf(format, args...)}
}

// postJSON 发送带 Bearer 鉴权的 JSON POST 请求。
// 调用方负责关闭响应体。
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, payload interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("构建请求失败: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")

	return client.Do(req)
}
