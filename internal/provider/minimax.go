package provider

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/logger"
)

// defaultMiniMaxVoice 是未配置音色时的默认 voice_id。
const defaultMiniMaxVoice = "Chinese (Mandarin)_Reliable_Executive"

// MiniMaxEngine 调用 MiniMax Speech。
// 响应是 JSON 信封，音频在 data.audio 里以十六进制编码，
// 可能带 0x 前缀，解码前要去掉。
type MiniMaxEngine struct {
	apiKey  string
	model   string
	baseURL string
	stream  bool
	client  *http.Client
}

// NewMiniMaxEngine 创建 MiniMax TTS 引擎。
func NewMiniMaxEngine(api config.APIConfig, client *http.Client) (*MiniMaxEngine, error) {
	if api.APIKey == "" {
		return nil, fmt.Errorf("[provider] minimax 需要有效的 API Key")
	}
	if api.GroupID == "" {
		logger.Warnf("[provider] minimax: 未设置 Group ID，部分接口可能需要")
	}
	return &MiniMaxEngine{
		apiKey:  api.APIKey,
		model:   api.Model,
		baseURL: api.BaseURL,
		stream:  api.Stream,
		client:  client,
	}, nil
}

type mmVoiceSetting struct {
	VoiceID string  `json:"voice_id"`
	Speed   float64 `json:"speed"`
	Vol     float64 `json:"vol"`
	Pitch   int     `json:"pitch"`
	Emotion string  `json:"emotion,omitempty"`
}

type mmAudioSetting struct {
	SampleRate int    `json:"sample_rate"`
	Bitrate    int    `json:"bitrate"`
	Format     string `json:"format"`
	Channel    int    `json:"channel"`
}

type mmPayload struct {
	Model         string         `json:"model"`
	Text          string         `json:"text"`
	Stream        bool           `json:"stream"`
	VoiceSetting  mmVoiceSetting `json:"voice_setting"`
	AudioSetting  mmAudioSetting `json:"audio_setting"`
	LanguageBoost string         `json:"language_boost,omitempty"`
}

type mmResponse struct {
	Data struct {
		Audio string `json:"audio"`
	} `json:"data"`
	BaseResp struct {
		StatusCode int    `json:"status_code"`
		StatusMsg  string `json:"status_msg"`
	} `json:"base_resp"`
}

// Synthesize 合成单段文本。
func (e *MiniMaxEngine) Synthesize(ctx context.Context, text string, vp config.VoiceProfile) Result {
	logger.Debugf("[provider] minimax: 正在合成 %d 个字符，音色=%s", len([]rune(text)), vp.VoiceID)

	payload := e.buildPayload(text, vp)

	resp, err := postJSON(ctx, e.client, e.baseURL+"/v1/t2a_v2", e.apiKey, payload)
	if err != nil {
		return failure("minimax 请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return failure("minimax 返回状态 %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if e.stream {
		audio := collectStream(resp.Body, func(line []byte) ([]byte, bool) {
			var chunk mmResponse
			if err := json.Unmarshal(line, &chunk); err != nil || chunk.Data.Audio == "" {
				return nil, false
			}
			data, err := decodeHexAudio(chunk.Data.Audio)
			if err != nil {
				return nil, false
			}
			return data, true
		})
		if len(audio) == 0 {
			return failure("minimax 流式响应中没有音频数据")
		}
		return success(audio)
	}

	var result mmResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return failure("minimax 响应解析失败: %v", err)
	}

	if result.Data.Audio == "" {
		if result.BaseResp.StatusCode != 0 {
			msg := result.BaseResp.StatusMsg
			// 限流错误单独标注，提示调大 rate_limit.delay；重试策略不变
			if isRateLimitMessage(msg) {
				return failure("minimax 触发限流: %s（建议增大 rate_limit.delay）", msg)
			}
			return failure("minimax 后端错误 %d: %s", result.BaseResp.StatusCode, msg)
		}
		return failure("minimax 响应中没有音频数据")
	}

	data, err := decodeHexAudio(result.Data.Audio)
	if err != nil {
		return failure("minimax 音频解码失败: %v", err)
	}
	return success(data)
}

// buildPayload 组装请求体，未设置的数值参数取合理默认值。
func (e *MiniMaxEngine) buildPayload(text string, vp config.VoiceProfile) mmPayload {
	voiceID := vp.VoiceID
	if voiceID == "" {
		voiceID = defaultMiniMaxVoice
	}
	speed := vp.Speed
	if speed == 0 {
		speed = 1.0
	}
	vol := vp.Volume
	if vol == 0 {
		vol = 1.0
	}

	return mmPayload{
		Model:  e.model,
		Text:   text,
		Stream: e.stream,
		VoiceSetting: mmVoiceSetting{
			VoiceID: voiceID,
			Speed:   speed,
			Vol:     vol,
			Pitch:   int(vp.Pitch),
			Emotion: vp.Emotion,
		},
		AudioSetting: mmAudioSetting{
			SampleRate: vp.SampleRate,
			Bitrate:    vp.Bitrate,
			Format:     vp.Format,
			Channel:    vp.Channel,
		},
		LanguageBoost: vp.LanguageBoost,
	}
}

// decodeHexAudio 解码十六进制音频字段，容忍可选的 0x 前缀。
func decodeHexAudio(s string) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	return hex.DecodeString(s)
}

// isRateLimitMessage 按错误文本粗略判断是否为限流，仅用于诊断信息。
func isRateLimitMessage(msg string) bool {
	lower := strings.ToLower(msg)
	return strings.Contains(lower, "rate limit") || strings.Contains(lower, "rpm")
}
