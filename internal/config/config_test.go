package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
provider: siliconflow
api:
  api_key: sk-test
  model: IndexTeam/IndexTTS-2
voices:
  primary:
    voice: alex
    speed: 1.1
  secondary:
    voice: anna
rate_limit:
  delay: 1.5
  max_retries: 3
output:
  output_dir: ./out
  prefix: episode
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != ProviderSiliconFlow {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if cfg.API.APIKey != "sk-test" {
		t.Errorf("api_key = %q", cfg.API.APIKey)
	}
	if cfg.Voices.Primary.Voice != "alex" || cfg.Voices.Primary.Speed != 1.1 {
		t.Errorf("primary voice = %+v", cfg.Voices.Primary)
	}
	if cfg.Voices.Secondary.Voice != "anna" {
		t.Errorf("secondary voice = %+v", cfg.Voices.Secondary)
	}
	if cfg.RateLimit.DelaySecs != 1.5 || cfg.RateLimit.MaxRetries != 3 {
		t.Errorf("rate_limit = %+v", cfg.RateLimit)
	}
	if cfg.Output.Prefix != "episode" {
		t.Errorf("prefix = %q", cfg.Output.Prefix)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("SCRIPTVOICE_TEST_KEY", "sk-from-env")
	path := writeConfig(t, `
provider: qwen
api:
  api_key: ${SCRIPTVOICE_TEST_KEY}
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.APIKey != "sk-from-env" {
		t.Errorf("api_key = %q, want value from environment", cfg.API.APIKey)
	}
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
provider: minimax
api:
  api_key: sk-test
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.API.BaseURL != "https://api.minimax.chat" {
		t.Errorf("base_url default = %q", cfg.API.BaseURL)
	}
	if cfg.API.Model != "speech-2.6-hd" {
		t.Errorf("model default = %q", cfg.API.Model)
	}
	if cfg.API.TimeoutSecs != 120 {
		t.Errorf("timeout default = %d", cfg.API.TimeoutSecs)
	}
	if cfg.RateLimit.DelaySecs != 0.3 || cfg.RateLimit.RetryDelaySecs != 5.0 {
		t.Errorf("rate_limit defaults = %+v", cfg.RateLimit)
	}
	if cfg.TextProcessing.MaxTextLength != 500 {
		t.Errorf("max_text_length default = %d", cfg.TextProcessing.MaxTextLength)
	}
	if cfg.Output.Prefix != "dialogue" || cfg.Output.SilenceBetween != 0.5 || cfg.Output.SegmentGap != 0.2 {
		t.Errorf("output defaults = %+v", cfg.Output)
	}
	if cfg.Voices.Primary.Format != "wav" || cfg.Voices.Primary.SampleRate != 32000 {
		t.Errorf("voice defaults = %+v", cfg.Voices.Primary)
	}
	if cfg.Edge.Voice != "zh-CN-XiaoxiaoNeural" {
		t.Errorf("edge voice default = %q", cfg.Edge.Voice)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("log level default = %q", cfg.Log.Level)
	}
}

func TestLoad_SwitchDefaultsOn(t *testing.T) {
	path := writeConfig(t, `
provider: edge
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Mood.Enable || !cfg.Emotion.UseEmotion || !cfg.Output.MergeAudio {
		t.Errorf("switches should default to on: mood=%v emotion=%v merge=%v",
			cfg.Mood.Enable, cfg.Emotion.UseEmotion, cfg.Output.MergeAudio)
	}
	if !cfg.TextProcessing.RemoveParentheses || !cfg.TextProcessing.LocalizeFigures {
		t.Errorf("text processing switches should default to on: %+v", cfg.TextProcessing)
	}
}

func TestLoad_SwitchExplicitOff(t *testing.T) {
	path := writeConfig(t, `
provider: edge
mood:
  enable: false
output:
  merge_audio: false
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Mood.Enable {
		t.Error("explicit mood.enable=false overridden")
	}
	if cfg.Output.MergeAudio {
		t.Error("explicit merge_audio=false overridden")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"合法 qwen", Config{Provider: ProviderQwen, API: APIConfig{APIKey: "sk-x"}}, false},
		{"缺少 key", Config{Provider: ProviderQwen}, true},
		{"占位 key", Config{Provider: ProviderMiniMax, API: APIConfig{APIKey: placeholderKey}}, true},
		{"edge 无需 key", Config{Provider: ProviderEdge}, false},
		{"未知后端", Config{Provider: "unknown", API: APIConfig{APIKey: "sk-x"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestLoad_PlaceholderKeyRejected(t *testing.T) {
	path := writeConfig(t, `
provider: qwen
api:
  api_key: YOUR_API_KEY_HERE
`)
	if _, err := Load(path); err == nil {
		t.Error("placeholder key should be rejected")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "provider: [broken")
	if _, err := Load(path); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestForSpeaker(t *testing.T) {
	v := VoicesConfig{
		Primary:   VoiceProfile{Voice: "alex"},
		Secondary: VoiceProfile{Voice: "anna"},
	}
	if got := v.ForSpeaker("primary").Voice; got != "alex" {
		t.Errorf("primary voice = %q", got)
	}
	if got := v.ForSpeaker("secondary").Voice; got != "anna" {
		t.Errorf("secondary voice = %q", got)
	}
	// 未知说话人回退主讲
	if got := v.ForSpeaker("other").Voice; got != "alex" {
		t.Errorf("fallback voice = %q", got)
	}
}
