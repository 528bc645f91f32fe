package audio

import (
	"fmt"
	"os"
	"time"

	"github.com/faiface/beep/wav"
)

// Duration 探测 WAV 文件的播放时长。
func Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("打开 %s 失败: %w", path, err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return 0, fmt.Errorf("解码 %s 失败: %w", path, err)
	}
	defer streamer.Close()

	return format.SampleRate.D(streamer.Len()), nil
}
