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
	"github.com/iabetor/scriptvoice/internal/script"
)

// SiliconFlowEngine 调用硅基流动的 OpenAI 兼容语音接口，
// 响应体直接就是所选格式的音频字节。
// 按模型名区分能力：IndexTTS 系列支持情绪向量，
// MOSS-TTSD 系列支持整场对话一次合成。
type SiliconFlowEngine struct {
	apiKey  string
	model   string
	baseURL string
	stream  bool
	client  *http.Client
}

// NewSiliconFlowEngine 创建硅基流动 TTS 引擎。
func NewSiliconFlowEngine(api config.APIConfig, client *http.Client) (*SiliconFlowEngine, error) {
	if api.APIKey == "" {
		return nil, fmt.Errorf("[provider] siliconflow 需要有效的 API Key")
	}
	return &SiliconFlowEngine{
		apiKey:  api.APIKey,
		model:   api.Model,
		baseURL: api.BaseURL,
		stream:  api.Stream,
		client:  client,
	}, nil
}

// isIndexTTS 报告当前模型是否支持情绪向量参数。
func (e *SiliconFlowEngine) isIndexTTS() bool {
	return strings.Contains(e.model, "IndexTTS")
}

// SupportsDialogue 报告当前模型是否支持对话合成（MOSS-TTSD 系列）。
func (e *SiliconFlowEngine) SupportsDialogue() bool {
	return strings.Contains(e.model, "MOSS-TTSD")
}

type sfReference struct {
	Audio string `json:"audio"`
	Text  string `json:"text"`
}

type sfPayload struct {
	Model          string        `json:"model"`
	Input          string        `json:"input"`
	Voice          string        `json:"voice"`
	ResponseFormat string        `json:"response_format,omitempty"`
	Speed          float64       `json:"speed,omitempty"`
	Gain           float64       `json:"gain,omitempty"`
	SampleRate     int           `json:"sample_rate,omitempty"`
	Stream         bool          `json:"stream,omitempty"`
	References     []sfReference `json:"references,omitempty"`
	EmoVector      string        `json:"emo_vector,omitempty"`
	EmoAlpha       float64       `json:"emo_alpha,omitempty"`
	UseEmoText     bool          `json:"use_emo_text,omitempty"`
}

// Synthesize 合成单段文本。
func (e *SiliconFlowEngine) Synthesize(ctx context.Context, text string, vp config.VoiceProfile) Result {
	logger.Debugf("[provider] siliconflow: 正在合成 %d 个字符，模型=%s", len([]rune(text)), e.model)

	payload := sfPayload{
		Model:          e.model,
		Input:          text,
		Voice:          e.qualifyVoice(vp.Voice),
		ResponseFormat: vp.Format,
		Speed:          vp.Speed,
		Gain:           vp.Gain,
		SampleRate:     vp.SampleRate,
		Stream:         e.stream,
		References:     toReferences(vp.References),
	}
	// 情绪向量仅 IndexTTS 系列模型接受
	if e.isIndexTTS() {
		payload.EmoVector = vp.EmoVector
		payload.EmoAlpha = vp.EmoAlpha
		payload.UseEmoText = vp.UseEmoText
	}

	return e.post(ctx, payload)
}

// SynthesizeDialogue 一次性合成整场双人对话（MOSS-TTSD）。
// 每句话带上 [S1]/[S2] 说话人标记拼接提交，
// references 依次给出两个说话人的参考音频。
func (e *SiliconFlowEngine) SynthesizeDialogue(ctx context.Context, segments []script.Segment, vp config.VoiceProfile) Result {
	if !e.SupportsDialogue() {
		return failure("模型 %s 不支持对话合成", e.model)
	}

	var sb strings.Builder
	for _, seg := range segments {
		tag := "[S1]"
		if seg.Speaker == script.SpeakerSecondary {
			tag = "[S2]"
		}
		sb.WriteString(tag)
		sb.WriteString(seg.Text)
	}
	text := sb.String()

	logger.Infof("[provider] siliconflow: 对话合成 %d 轮，共 %d 个字符", len(segments), len([]rune(text)))

	refs := toReferences(vp.References)
	if len(refs) == 0 {
		refs = fallbackReferences(vp.Voice)
	}

	payload := sfPayload{
		Model:          e.model,
		Input:          text,
		ResponseFormat: vp.Format,
		Speed:          vp.Speed,
		Gain:           vp.Gain,
		References:     refs,
	}
	return e.post(ctx, payload)
}

// post 提交请求并直接读取响应体作为音频数据。
func (e *SiliconFlowEngine) post(ctx context.Context, payload sfPayload) Result {
	resp, err := postJSON(ctx, e.client, e.baseURL+"/v1/audio/speech", e.apiKey, payload)
	if err != nil {
		return failure("siliconflow 请求失败: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return failure("siliconflow 返回状态 %d: %s", resp.StatusCode, readErrorMessage(resp.Body))
	}

	if payload.Stream {
		audio := collectStream(resp.Body, func(line []byte) ([]byte, bool) {
			var chunk struct {
				Audio string `json:"audio"`
			}
			if err := json.Unmarshal(line, &chunk); err != nil || chunk.Audio == "" {
				return nil, false
			}
			data, err := base64.StdEncoding.DecodeString(chunk.Audio)
			if err != nil {
				return nil, false
			}
			return data, true
		})
		if len(audio) == 0 {
			return failure("siliconflow 流式响应中没有音频数据")
		}
		return success(audio)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure("siliconflow 响应读取失败: %v", err)
	}
	if len(data) == 0 {
		return failure("siliconflow 响应中没有音频数据")
	}
	return success(data)
}

// qualifyVoice 为系统预置音色补上模型前缀，如 "alex" → "fnlp/MOSS-TTSD-v0.5:alex"。
func (e *SiliconFlowEngine) qualifyVoice(voice string) string {
	if voice == "" || strings.HasPrefix(voice, e.model) {
		return voice
	}
	return e.model + ":" + voice
}

func toReferences(refs []config.Reference) []sfReference {
	if len(refs) == 0 {
		return nil
	}
	out := make([]sfReference, len(refs))
	for i, r := range refs {
		out[i] = sfReference{Audio: r.Audio, Text: r.Text}
	}
	return out
}

// readErrorMessage 尽力从错误响应体中取出可读信息。
func readErrorMessage(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 4096))
	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		if wrapped.Error.Message != "" {
			return wrapped.Error.Message
		}
		if wrapped.Message != "" {
			return wrapped.Message
		}
	}
	return strings.TrimSpace(string(raw))
}

// refSampleText 是预置参考音频对应的朗读文本。
const refSampleText = "在一无所知中，梦里的一天结束了，一个新的轮回便会开始"

// mossMaleVoices 是 MOSS-TTSD 预置男声音色池。
var mossMaleVoices = []string{"alex", "benjamin", "charles", "david"}

// fallbackReferences 在未显式提供参考音频时，按音色名从预置池
// 确定性地选出 S1/S2 两组参考音频。
func fallbackReferences(voice string) []sfReference {
	name := voice
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	name = strings.ToLower(strings.TrimSpace(name))

	s1 := "alex"
	for _, v := range mossMaleVoices {
		if name == v {
			s1 = name
			break
		}
	}
	// S2 默认用女声 anna
	return []sfReference{presetReference(s1), presetReference("anna")}
}

// presetReference 构造预置示例参考音频。
func presetReference(name string) sfReference {
	capitalized := strings.ToUpper(name[:1]) + name[1:]
	return sfReference{
		Audio: fmt.Sprintf("https://sf-maas-uat-prod.oss-cn-shanghai.aliyuncs.com/voice_template/fish_audio-%s.mp3", capitalized),
		Text:  refSampleText,
	}
}
