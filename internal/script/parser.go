package script

import (
	"regexp"
	"strings"

	"github.com/iabetor/scriptvoice/internal/mood"
)

// 文稿采用三井号栅栏块标注对话，支持两种格式：
//
// 扩展格式（带情绪标注）：
//
//	### primary speaker ###
//	### happy ###
//	### 文本内容 ###
//
// 旧格式（无情绪行，向后兼容）：
//
//	### primary speaker ###
//	### 文本内容 ###
var (
	extendedPattern = regexp.MustCompile(`(?s)###\s*(primary|secondary)\s*speaker\s*###\s*\n\s*###\s*(\w+)\s*###\s*\n\s*###\s*(.*?)\s*###`)
	legacyPattern   = regexp.MustCompile(`(?s)###\s*(primary|secondary)\s*speaker\s*###\s*\n\s*###\s*(.*?)\s*###`)

	whitespaceRun = regexp.MustCompile(`\s+`)
	// 括号旁白，ASCII 与全角两种写法，如（打断）
	parenthetical = regexp.MustCompile(`[（(][^）)]+[）)]`)
	figureRef     = regexp.MustCompile(`(?i)Figure\s*(\d+)`)
)

// Parser 把对话文稿解析为有序段落序列。
// 格式错误的块会被静默跳过，不视为解析失败。
type Parser struct {
	// UseTextMood 使用文稿标注的情绪；false 时所有段落强制为默认情绪。
	UseTextMood bool
	// DefaultMood 标注缺失或无效时使用的情绪。
	DefaultMood mood.Tag

	// RemoveParentheses 清洗时去掉括号旁白。
	RemoveParentheses bool
	// LocalizeFigures 把 "Figure N" 改写为 "图N"。
	LocalizeFigures bool

	// DetectFormat 决定按扩展格式还是旧格式解析。
	// 入参为两种格式在全文中的匹配数；返回 true 表示按扩展格式。
	// 为 nil 时使用 DefaultDetect。
	DetectFormat func(extended, legacy int) bool
}

// DefaultDetect 是默认的格式判定：扩展格式匹配数不少于旧格式的一半
// 即认为文档带情绪标注（情绪行会让旧格式匹配数接近翻倍）。
func DefaultDetect(extended, legacy int) bool {
	return extended > 0 && float64(extended) >= float64(legacy)/2
}

// Parse 解析文稿内容，返回按文档顺序编号的段落。
// 清洗后为空的段落被丢弃且不占用序号。
func (p *Parser) Parse(content string) []Segment {
	detect := p.DetectFormat
	if detect == nil {
		detect = DefaultDetect
	}
	defaultMood := p.DefaultMood
	if defaultMood == "" {
		defaultMood = mood.Gentle
	}

	extMatches := extendedPattern.FindAllStringSubmatch(content, -1)
	legMatches := legacyPattern.FindAllStringSubmatch(content, -1)

	var segments []Segment
	index := 1

	if detect(len(extMatches), len(legMatches)) {
		for _, m := range extMatches {
			tag := mood.Tag(strings.ToLower(m[2]))
			if !mood.Valid(tag) {
				tag = defaultMood
			}
			if !p.UseTextMood {
				tag = defaultMood
			}
			text := p.cleanText(m[3])
			if text == "" {
				continue
			}
			segments = append(segments, Segment{
				Index:   index,
				Speaker: Speaker(strings.ToLower(m[1])),
				Text:    text,
				Mood:    tag,
			})
			index++
		}
		return segments
	}

	for _, m := range legMatches {
		text := p.cleanText(m[2])
		if text == "" {
			continue
		}
		segments = append(segments, Segment{
			Index:   index,
			Speaker: Speaker(strings.ToLower(m[1])),
			Text:    text,
			Mood:    defaultMood,
		})
		index++
	}
	return segments
}

// cleanText 按固定顺序清洗段落文本：
// 换行并为空格 → 压缩空白 → 去括号旁白 → Figure 本地化 → 去首尾空白。
func (p *Parser) cleanText(text string) string {
	text = strings.ReplaceAll(text, "\n", " ")
	text = whitespaceRun.ReplaceAllString(text, " ")

	if p.RemoveParentheses {
		text = parenthetical.ReplaceAllString(text, "")
	}
	if p.LocalizeFigures {
		text = figureRef.ReplaceAllString(text, "图$1")
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
