package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/hajimehoshi/ebiten/v2/text/v2"
)

// WrapText 将文本按指定宽度自动换行
// 参数:
//   - textStr: 要换行的文本，已有的换行符会保留
//   - face: 字体
//   - maxWidth: 最大宽度（像素）
//
// 返回:
//   - []string: 换行后的文本数组（每个元素为一行）
//
// 换行规则:
//   - 在空格处断行
//   - 单词本身超过最大宽度时按字符强制断行
func WrapText(textStr string, face text.Face, maxWidth float64) []string {
	if textStr == "" || face == nil || maxWidth <= 0 {
		return []string{textStr}
	}

	var lines []string
	for _, paragraph := range strings.Split(textStr, "\n") {
		lines = append(lines, wrapParagraph(paragraph, face, maxWidth)...)
	}
	return lines
}

func wrapParagraph(paragraph string, face text.Face, maxWidth float64) []string {
	words := strings.Fields(paragraph)
	if len(words) == 0 {
		return []string{""}
	}

	var lines []string
	current := ""
	for _, word := range words {
		candidate := word
		if current != "" {
			candidate = current + " " + word
		}
		if MeasureTextWidth(candidate, face) <= maxWidth {
			current = candidate
			continue
		}

		if current != "" {
			lines = append(lines, current)
			current = ""
		}
		if MeasureTextWidth(word, face) <= maxWidth {
			current = word
			continue
		}

		// 单词太长，按字符拆开
		pieces := breakWord(word, face, maxWidth)
		lines = append(lines, pieces[:len(pieces)-1]...)
		current = pieces[len(pieces)-1]
	}
	if current != "" {
		lines = append(lines, current)
	}
	return lines
}

func breakWord(word string, face text.Face, maxWidth float64) []string {
	var pieces []string
	current := ""
	for len(word) > 0 {
		r, size := utf8.DecodeRuneInString(word)
		word = word[size:]
		candidate := current + string(r)
		if current != "" && MeasureTextWidth(candidate, face) > maxWidth {
			pieces = append(pieces, current)
			current = string(r)
			continue
		}
		current = candidate
	}
	return append(pieces, current)
}

// MeasureTextWidth 测量单行文本宽度
func MeasureTextWidth(textStr string, face text.Face) float64 {
	if textStr == "" || face == nil {
		return 0
	}
	width, _ := text.Measure(textStr, face, 0)
	return width
}
