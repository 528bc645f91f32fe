package provider

import (
	"bufio"
	"io"
)

// maxStreamLine 是流式响应单行的最大长度。
// 音频块经 base64/hex 编码后一行可能有几 MB。
const maxStreamLine = 16 * 1024 * 1024

// collectStream 逐行读取 NDJSON 流式响应，把每行解出的音频字节按到达顺序拼接。
// decode 负责解析单行并返回其中的音频数据；解析失败的行静默跳过
// （流中混有心跳、结束标记等非音频行是正常情况）。
func collectStream(r io.Reader, decode func(line []byte) ([]byte, bool)) []byte {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStreamLine)

	var audio []byte
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		if chunk, ok := decode(line); ok {
			audio = append(audio, chunk...)
		}
	}
	return audio
}
