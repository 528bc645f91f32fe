package audio

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
)

// Format 描述 WAV 文件的 PCM 参数。
type Format struct {
	Channels    int // 声道数
	SampleWidth int // 单样本字节数
	SampleRate  int // 采样率（Hz）
}

// BytesPerFrame 返回一帧（所有声道各一个样本）占用的字节数。
func (f Format) BytesPerFrame() int {
	return f.Channels * f.SampleWidth
}

func (f Format) String() string {
	return fmt.Sprintf("%dch/%dbit/%dHz", f.Channels, f.SampleWidth*8, f.SampleRate)
}

// ReadWAV 解析 WAV 文件，返回 PCM 参数与原始帧数据。
func ReadWAV(path string) (Format, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Format{}, nil, fmt.Errorf("读取 %s 失败: %w", path, err)
	}
	f, frames, err := DecodeWAV(data)
	if err != nil {
		return Format{}, nil, fmt.Errorf("解析 %s 失败: %w", path, err)
	}
	return f, frames, nil
}

// DecodeWAV 解析 RIFF/WAVE 字节流，返回 PCM 参数与 data 块内容。
func DecodeWAV(data []byte) (Format, []byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Format{}, nil, fmt.Errorf("不是有效的 WAV 数据")
	}

	var f Format
	var frames []byte
	haveFmt := false
	haveData := false

	// 遍历 RIFF 子块，找到 fmt 和 data
	off := 12
	for off+8 <= len(data) {
		id := string(data[off : off+4])
		size := int(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := off + 8
		if body+size > len(data) {
			size = len(data) - body
		}

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, nil, fmt.Errorf("fmt 块长度异常: %d", size)
			}
			f.Channels = int(binary.LittleEndian.Uint16(data[body+2 : body+4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(data[body+4 : body+8]))
			f.SampleWidth = int(binary.LittleEndian.Uint16(data[body+14:body+16])) / 8
			haveFmt = true
		case "data":
			frames = data[body : body+size]
			haveData = true
		}

		// 子块按 2 字节对齐
		off = body + size
		if size%2 == 1 {
			off++
		}
	}

	if !haveFmt || !haveData {
		return Format{}, nil, fmt.Errorf("WAV 数据缺少 fmt 或 data 块")
	}
	if f.Channels <= 0 || f.SampleRate <= 0 || f.SampleWidth <= 0 {
		return Format{}, nil, fmt.Errorf("WAV 参数异常: %s", f)
	}
	return f, frames, nil
}

// EncodeWAV 将 PCM 帧数据打包为带 44 字节标准头的 WAV 字节流。
func EncodeWAV(f Format, frames []byte) []byte {
	byteRate := f.SampleRate * f.BytesPerFrame()
	out := make([]byte, 44+len(frames))

	copy(out[0:4], "RIFF")
	binary.LittleEndian.PutUint32(out[4:8], uint32(36+len(frames)))
	copy(out[8:12], "WAVE")

	copy(out[12:16], "fmt ")
	binary.LittleEndian.PutUint32(out[16:20], 16)
	binary.LittleEndian.PutUint16(out[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(out[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(out[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(out[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(out[32:34], uint16(f.BytesPerFrame()))
	binary.LittleEndian.PutUint16(out[34:36], uint16(f.SampleWidth*8))

	copy(out[36:40], "data")
	binary.LittleEndian.PutUint32(out[40:44], uint32(len(frames)))
	copy(out[44:], frames)

	return out
}

// WriteWAV 将 PCM 帧数据写为 WAV 文件。
// 先写临时文件再改名，保证任何已存在的文件都是完整写入的。
func WriteWAV(path string, f Format, frames []byte) error {
	return WriteFileAtomic(path, EncodeWAV(f, frames))
}

// WriteFileAtomic 通过写临时文件 + 改名落盘。
// 产物文件的存在即代表写入完整，这是断点续传判断的前提。
func WriteFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".scriptvoice-*.tmp")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("写入临时文件失败: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("关闭临时文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("重命名 %s 失败: %w", path, err)
	}
	return nil
}
