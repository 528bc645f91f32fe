package script

import "strings"

// sentenceEnders 是切句使用的终止符集合，中英文句读都在内。
const sentenceEnders = "。！？.!?"

// SplitLongText 把超过 maxLen 个字符的文本切分为有序子块。
// 先按终止符切句（终止符保留在句尾），再从左到右贪心装填：
// 当前块装不下下一句时开新块，最后的未满块照常输出。
// 单句超过 maxLen 时按字符硬切，保证每块不超限。
// 长度按字符（rune）计，与后端的请求限制口径一致。
func SplitLongText(text string, maxLen int) []string {
	if maxLen <= 0 || len([]rune(text)) <= maxLen {
		return []string{text}
	}

	var chunks []string
	var current []rune

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.TrimSpace(string(current)))
			current = nil
		}
	}

	for _, sentence := range splitSentences(text) {
		r := []rune(sentence)

		if len(r) > maxLen {
			// 无终止符的超长句：硬切为 maxLen 大小的块
			flush()
			for len(r) > maxLen {
				chunks = append(chunks, string(r[:maxLen]))
				r = r[maxLen:]
			}
			current = r
			continue
		}

		if len(current)+len(r) > maxLen {
			flush()
			current = r
		} else {
			current = append(current, r...)
		}
	}
	flush()

	return chunks
}

// splitSentences 按终止符切句，每句带着自己的终止符。
// 末尾无终止符的残句作为最后一项返回。
func splitSentences(text string) []string {
	var sentences []string
	var current []rune

	for _, r := range text {
		current = append(current, r)
		if strings.ContainsRune(sentenceEnders, r) {
			sentences = append(sentences, string(current))
			current = nil
		}
	}
	if len(current) > 0 {
		sentences = append(sentences, string(current))
	}
	return sentences
}
