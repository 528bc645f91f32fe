package provider

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/logger"
)

// QwenEngine 调用阿里云百炼 Qwen-TTS。
// 生成接口返回 JSON，音频在 output.audio 里：优先给出可下载的 URL，
// 否则内联 base64 数据，两种都要处理。
type QwenEngine struct {
	apiKey  string
	model   string
	baseURL string
	stream  bool
	client  *http.Client
}

// NewQwenEngine 创建 Qwen TTS 引擎。
func NewQwenEngine(api config.APIConfig, client *http.Client) (*QwenEngine, error) {
	if api.APIKey == "" {
		return nil, fmt.Errorf("[provider] qwen 需要有效的 API Key")
	}
	return &QwenEngine{
		apiKey:  api.APIKey,
		model:   api.Model,
		baseURL: api.BaseURL,
		stream:  api.Stream,
		client:  client,
	}, nil
}

type qwenInput struct {
	Text                 string `json:"text"`
	Voice                string `json:"voice"`
	LanguageType         string `json:"language_type"`
	Instructions         string `json:"instructions,omitempty"`
	OptimizeInstructions bool   `json:"optimize_instructions,omitempty"`
}

type qwenPayload struct {
	Model  string    `json:"model"`
	Input  qwenInput `json:"input"`
	Stream bool      `json:"stream,omitempty"`
}

type qwenResponse struct {
	Output struct {
		Audio struct {
			URL  string `json:"url"`
			Data string `json:"data"`
		} `json:"audio"`
	} `json:"output"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Synthesize 合成单段文本。
func (e *QwenEngine) Synthesize(ctx context.Context, text string, vp config.VoiceProfile) Result {
	logger.Debugf("[provider] qwen: 正在合成 %d 个字符，音色=%s", len([]rune(text)), vp.Voice)

	payload := qwenPayload{
		Model: e.model,
		Input: qwenInput{
			Text:         text,
			Voice:        vp.Voice,
			LanguageType: vp.LanguageType,
		},
		Stream: e.stream,
	}
	// 仅指令控制类模型接受 instructions
	if vp.Instructions != "" && strings.Contains(e.model, "instruct") {
		payload.Input.Instructions = vp.Instructions
		payload.Input.OptimizeInstructions = vp.OptimizeInstructions
	}

	resp, err := postJSON(ctx, e.client, e.baseURL+"/services/aigc/multimodal-generation/generation", e.apiKey, payload)
	if err != nil {
		return failure("qwen 请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return failure("qwen 返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if e.stream {
		return e.collectStreamBody(resp.Body)
	}

	var result qwenResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failure("qwen 响应解析失败: %v", err)
	}

	audio := result.Output.Audio
	switch {
	case audio.URL != "":
		return e.fetchAudio(ctx, audio.URL)
	case audio.Data != "":
		data, err := base64.StdEncoding.DecodeString(audio.Data)
		if err != nil {
			return failure("qwen base64 解码失败: %v", err)
		}
		return success(data)
	}

	if result.Message != "" {
		return failure("qwen 后端错误: %s (%s)", result.Message, result.Code)
	}
	return failure("qwen 响应中没有音频数据")
}

// fetchAudio 下载响应给出的音频 URL。
func (e *QwenEngine) fetchAudio(ctx context.Context, url string) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failure("qwen 音频下载请求构建失败: %v", err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return failure("qwen 音频下载失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure("qwen 音频下载返回状态 %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure("qwen 音频下载读取失败: %v", err)
	}
	logger.Debugf("[provider] qwen: 下载音频 %d 字节", len(data))
	return success(data)
}

// collectStreamBody 收集流式合成的 NDJSON 分块。
// 每行形如 {"output":{"audio":"<base64>"}}。
func (e *QwenEngine) collectStreamBody(body io.Reader) Result {
	audio := collectStream(body, func(line []byte) ([]byte, bool) {
		var chunk struct {
			Output struct {
				Audio string `json:"audio"`
			} `json:"output"`
		}
		if err := json.Unmarshal(line, &chunk); err != nil || chunk.Output.Audio == "" {
			return nil, false
		}
		data, err := base64.StdEncoding.DecodeString(chunk.Output.Audio)
		if err != nil {
			return nil, false
		}
		return data, true
	})
	if len(audio) == 0 {
		return failure("qwen 流式响应中没有音频数据")
	}
	return success(audio)
}
