package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// placeholderKey 是配置模板里的占位 API Key，视同未配置。
const placeholderKey = "YOUR_API_KEY_HERE"

// 支持的合成后端名称。
const (
	ProviderQwen        = "qwen"
	ProviderSiliconFlow = "siliconflow"
	ProviderMiniMax     = "minimax"
	ProviderEdge        = "edge"
)

// Config 是 scriptvoice 的顶层配置结构。
type Config struct {
	Provider       string               `yaml:"provider"`
	API            APIConfig            `yaml:"api"`
	Voices         VoicesConfig         `yaml:"voices"`
	RateLimit      RateLimitConfig      `yaml:"rate_limit"`
	Mood           MoodConfig           `yaml:"mood"`
	Emotion        EmotionConfig        `yaml:"emotion"`
	TextProcessing TextProcessingConfig `yaml:"text_processing"`
	Output         OutputConfig         `yaml:"output"`
	Edge           EdgeConfig           `yaml:"edge"`
	Log            LogConfig            `yaml:"log"`
}

// APIConfig 后端 API 配置。
type APIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
	BaseURL string `yaml:"base_url"`
	GroupID string `yaml:"group_id"`
	// Stream 启用流式合成（NDJSON 分块响应），适用于长文本。
	Stream bool `yaml:"stream"`
	// TimeoutSecs 单次请求超时（秒）。
	TimeoutSecs int `yaml:"timeout_secs"`
}

// VoicesConfig 按说话人划分的音色配置。
type VoicesConfig struct {
	Primary   VoiceProfile `yaml:"primary"`
	Secondary VoiceProfile `yaml:"secondary"`
}

// Reference 声音克隆的参考音频：URL 或 data URI + 对应文字内容。
type Reference struct {
	Audio string `yaml:"audio"`
	Text  string `yaml:"text"`
}

// VoiceProfile 单个说话人的静态音色配置。
// 运行期间只读；情绪参数通过 mood.Apply 合并到副本上。
type VoiceProfile struct {
	Voice        string `yaml:"voice"`
	VoiceID      string `yaml:"voice_id"`
	LanguageType string `yaml:"language_type"`

	// Instructions 是指令控制类模型的风格描述文本。
	Instructions         string `yaml:"instructions"`
	OptimizeInstructions bool   `yaml:"optimize_instructions"`

	Speed  float64 `yaml:"speed"`
	Pitch  float64 `yaml:"pitch"`
	Volume float64 `yaml:"vol"`
	Gain   float64 `yaml:"gain"`

	// Emotion 是离散情绪标签（后端自有词表）。
	Emotion string `yaml:"emotion"`
	// EmoVector / EmoAlpha 是情绪向量类模型的控制参数。
	EmoVector  string  `yaml:"emo_vector"`
	EmoAlpha   float64 `yaml:"emo_alpha"`
	UseEmoText bool    `yaml:"use_emo_text"`

	SampleRate    int    `yaml:"sample_rate"`
	Bitrate       int    `yaml:"bitrate"`
	Format        string `yaml:"format"`
	Channel       int    `yaml:"channel"`
	LanguageBoost string `yaml:"language_boost"`

	// References 声音克隆参考音频，留空时由后端选择预置音色。
	References []Reference `yaml:"references"`
}

// ForSpeaker 返回指定说话人的音色配置。
func (v VoicesConfig) ForSpeaker(speaker string) VoiceProfile {
	if speaker == "secondary" {
		return v.Secondary
	}
	return v.Primary
}

// RateLimitConfig 请求节流与重试配置。
type RateLimitConfig struct {
	// DelaySecs 每次成功请求后的固定等待（秒），避免触发后端限流。
	DelaySecs float64 `yaml:"delay"`
	// MaxRetries 单个文本块的最大重试次数，0 表示不重试。
	MaxRetries int `yaml:"max_retries"`
	// RetryDelaySecs 重试基础等待（秒），实际等待 = RetryDelaySecs × 第几次重试。
	RetryDelaySecs float64 `yaml:"retry_delay"`
}

// MoodConfig 情绪功能总开关。
type MoodConfig struct {
	Enable bool `yaml:"enable"`
}

// EmotionConfig 情绪参数来源配置。
type EmotionConfig struct {
	// UseEmotion 使用文稿中标注的情绪；false 时所有段落按默认情绪处理。
	UseEmotion bool `yaml:"use_emotion"`
	// DefaultEmotion 未标注或标注无效时的默认情绪。
	DefaultEmotion string `yaml:"default_emotion"`
	// PassVoiceParams 在 UseEmotion=false 时仍传递语速/音调/音量，
	// 情绪本身交给后端自行推断。
	PassVoiceParams bool `yaml:"pass_voice_params"`
}

// TextProcessingConfig 文本清洗与分段配置。
type TextProcessingConfig struct {
	RemoveParentheses bool `yaml:"remove_parentheses"`
	LocalizeFigures   bool `yaml:"localize_figures"`
	// MaxTextLength 单次请求的最大字符数，超长段落按句切分。
	MaxTextLength int `yaml:"max_text_length"`
}

// OutputConfig 输出文件配置。
type OutputConfig struct {
	OutputDir string `yaml:"output_dir"`
	Prefix    string `yaml:"prefix"`
	// MergeAudio 全部段落生成后合并为完整音频。
	MergeAudio bool `yaml:"merge_audio"`
	// SilenceBetween 完整合并时段落间静音（秒）。
	SilenceBetween float64 `yaml:"silence_between"`
	// SegmentGap 单段落内分块合并时的静音（秒）。
	SegmentGap float64 `yaml:"segment_gap"`
	// UseTimestampSubdir 在输出目录下按时间建子目录。
	UseTimestampSubdir bool `yaml:"use_timestamp_subdir"`
}

// EdgeConfig Edge TTS（离线备用后端）配置。
type EdgeConfig struct {
	Voice string `yaml:"voice"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Load 读取 YAML 配置文件并返回 Config。
// 支持 ${VAR_NAME} 形式的环境变量展开。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件 %s 失败: %w", path, err)
	}

	// 展开环境变量，如 ${SCRIPTVOICE_API_KEY}
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{
		// 这几项默认开启，YAML 里显式写 false 才关闭。
		Mood:           MoodConfig{Enable: true},
		Emotion:        EmotionConfig{UseEmotion: true},
		TextProcessing: TextProcessingConfig{RemoveParentheses: true, LocalizeFigures: true},
		Output:         OutputConfig{MergeAudio: true},
	}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("解析配置文件 %s 失败: %w", path, err)
	}

	setDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查致命配置错误，必须在任何合成请求之前调用。
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderQwen, ProviderSiliconFlow, ProviderMiniMax:
		if c.API.APIKey == "" || c.API.APIKey == placeholderKey {
			return fmt.Errorf("后端 %s 需要有效的 api.api_key", c.Provider)
		}
	case ProviderEdge:
		// 离线后端无需凭据
	default:
		return fmt.Errorf("不支持的合成后端: %s（可选: qwen、siliconflow、minimax、edge）", c.Provider)
	}
	return nil
}

// setDefaults 为未设置的配置项填充默认值。
func setDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = ProviderQwen
	}
	cfg.Provider = strings.ToLower(cfg.Provider)
	cfg.API.APIKey = strings.TrimSpace(cfg.API.APIKey)

	if cfg.API.TimeoutSecs == 0 {
		cfg.API.TimeoutSecs = 120
	}
	if cfg.API.BaseURL == "" {
		switch cfg.Provider {
		case ProviderQwen:
			cfg.API.BaseURL = "https://dashscope.aliyuncs.com/api/v1"
		case ProviderSiliconFlow:
			cfg.API.BaseURL = "https://api.siliconflow.cn"
		case ProviderMiniMax:
			cfg.API.BaseURL = "https://api.minimax.chat"
		}
	}
	if cfg.API.Model == "" {
		switch cfg.Provider {
		case ProviderSiliconFlow:
			cfg.API.Model = "IndexTeam/IndexTTS-2"
		case ProviderMiniMax:
			cfg.API.Model = "speech-2.6-hd"
		}
	}

	setVoiceDefaults(&cfg.Voices.Primary)
	setVoiceDefaults(&cfg.Voices.Secondary)

	if cfg.RateLimit.DelaySecs == 0 {
		cfg.RateLimit.DelaySecs = 0.3
	}
	if cfg.RateLimit.RetryDelaySecs == 0 {
		cfg.RateLimit.RetryDelaySecs = 5.0
	}

	if cfg.Emotion.DefaultEmotion == "" {
		cfg.Emotion.DefaultEmotion = "gentle"
	}
	if cfg.TextProcessing.MaxTextLength == 0 {
		cfg.TextProcessing.MaxTextLength = 500
	}

	if cfg.Output.OutputDir == "" {
		cfg.Output.OutputDir = "./tts_output"
	}
	if cfg.Output.Prefix == "" {
		cfg.Output.Prefix = "dialogue"
	}
	if cfg.Output.SilenceBetween == 0 {
		cfg.Output.SilenceBetween = 0.5
	}
	if cfg.Output.SegmentGap == 0 {
		cfg.Output.SegmentGap = 0.2
	}

	if cfg.Edge.Voice == "" {
		cfg.Edge.Voice = "zh-CN-XiaoxiaoNeural"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// setVoiceDefaults 填充音频输出参数默认值。
// 合并器按 WAV 处理段落音频，因此默认请求 wav 格式。
func setVoiceDefaults(vp *VoiceProfile) {
	if vp.Format == "" {
		vp.Format = "wav"
	}
	if vp.SampleRate == 0 {
		vp.SampleRate = 32000
	}
	if vp.Bitrate == 0 {
		vp.Bitrate = 128000
	}
	if vp.Channel == 0 {
		vp.Channel = 1
	}
	if vp.LanguageType == "" {
		vp.LanguageType = "Chinese"
	}
}
