package audio

import (
	"fmt"
	"math"
)

// SilenceBytes 生成 seconds 秒静音对应的全零帧数据。
// 字节数 = round(采样率 × 秒数) × 单样本字节数 × 声道数。
func SilenceBytes(f Format, seconds float64) []byte {
	frames := int(math.Round(float64(f.SampleRate) * seconds))
	return make([]byte, frames*f.BytesPerFrame())
}

// Merge 无损拼接多个 WAV 文件，相邻文件之间插入 silenceSeconds 秒静音
// （最后一个文件之后不加），结果写入 outPath。
// 第一个文件的 PCM 参数为基准；后续文件参数不一致直接报错，
// 不做重采样，避免悄悄生成损坏的音频。
func Merge(files []string, outPath string, silenceSeconds float64) error {
	if len(files) == 0 {
		return fmt.Errorf("没有待合并的音频文件")
	}

	base, frames, err := ReadWAV(files[0])
	if err != nil {
		return err
	}

	silence := SilenceBytes(base, silenceSeconds)
	merged := make([]byte, 0, len(frames))
	merged = append(merged, frames...)

	for _, path := range files[1:] {
		f, fr, err := ReadWAV(path)
		if err != nil {
			return err
		}
		if f != base {
			return fmt.Errorf("音频参数不一致: %s 是 %s，基准是 %s", path, f, base)
		}
		merged = append(merged, silence...)
		merged = append(merged, fr...)
	}

	return WriteWAV(outPath, base, merged)
}
