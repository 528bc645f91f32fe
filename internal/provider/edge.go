package provider

import (
	"bytes"
	"context"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/scriptvoice/internal/audio"
	"github.com/iabetor/scriptvoice/internal/config"
	"github.com/iabetor/scriptvoice/internal/logger"
)

// EdgeEngine 使用微软 Edge TTS 作为免凭据的备用后端，
// 通过 edge-tts-go 获取 MP3 音频，解码为 PCM 后打包为 WAV。
// 没有情绪控制参数，音色由配置指定。
type EdgeEngine struct {
	voice string
}

// NewEdgeEngine 创建指定语音的 Edge TTS 引擎。
func NewEdgeEngine(voice string) *EdgeEngine {
	return &EdgeEngine{voice: voice}
}

// Synthesize 合成单段文本为单声道 16-bit WAV。
func (e *EdgeEngine) Synthesize(ctx context.Context, text string, vp config.VoiceProfile) Result {
	voice := vp.Voice
	if voice == "" {
		voice = e.voice
	}
	logger.Debugf("[provider] edge-tts: 正在合成 %d 个字符，语音=%s", len([]rune(text)), voice)

	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return failure("edge-tts 创建实例失败: %v", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return failure("edge-tts 开始流式合成失败: %v", err)
	}

	// 从 channel 收集所有 MP3 音频块
	var mp3Buf bytes.Buffer
	for msg := range ch {
		select {
		case <-ctx.Done():
			return failure("edge-tts 合成被取消: %v", ctx.Err())
		default:
		}
		if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
			if data, ok := msg["data"].([]byte); ok {
				mp3Buf.Write(data)
			}
		}
	}

	if mp3Buf.Len() == 0 {
		return failure("edge-tts 未收到音频数据")
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(mp3Buf.Bytes()))
	if err != nil {
		return failure("edge-tts MP3 解码失败: %v", err)
	}
	sampleRate := decoder.SampleRate()

	pcmData, err := io.ReadAll(decoder)
	if err != nil {
		return failure("edge-tts 读取 PCM 数据失败: %v", err)
	}

	// go-mp3 输出交错立体声 16-bit LE，截掉不完整的尾帧后降混为单声道
	const bytesPerFrame = 4
	pcmData = pcmData[:len(pcmData)/bytesPerFrame*bytesPerFrame]
	samples := audio.DownmixStereo(audio.BytesToInt16(pcmData))

	logger.Debugf("[provider] edge-tts: 生成 %d 个单声道样本，采样率 %d Hz", len(samples), sampleRate)

	wavData := audio.EncodeWAV(
		audio.Format{Channels: 1, SampleWidth: 2, SampleRate: sampleRate},
		audio.Int16ToBytes(samples),
	)
	return success(wavData)
}
