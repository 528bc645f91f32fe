package script

import "github.com/iabetor/scriptvoice/internal/mood"

// Speaker 标识对话双方。
type Speaker string

const (
	SpeakerPrimary   Speaker = "primary"
	SpeakerSecondary Speaker = "secondary"
)

// Segment 是一段解析后的对话：说话人、清洗后的文本、情绪与文档序号。
// 序号从 1 开始、按文档顺序连续；创建后不再修改。
type Segment struct {
	Index   int
	Speaker Speaker
	Text    string
	Mood    mood.Tag
}

// Chunk 是超长段落按句切分后的一个子块。
type Chunk struct {
	SegmentIndex int
	Ordinal      int
	Text         string
}

// Chunks 把段落文本按 maxLen 切分为有序子块，Ordinal 从 1 开始。
func Chunks(seg Segment, maxLen int) []Chunk {
	parts := SplitLongText(seg.Text, maxLen)
	chunks := make([]Chunk, len(parts))
	for i, p := range parts {
		chunks[i] = Chunk{SegmentIndex: seg.Index, Ordinal: i + 1, Text: p}
	}
	return chunks
}
