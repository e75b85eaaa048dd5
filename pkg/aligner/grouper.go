package aligner

import (
	"strings"
	"unicode"

	"github.com/z-wentao/polysub/pkg/models"
)

// 常见称谓/头衔缩写：以点结尾但不代表句子结束
var titleAbbreviations = map[string]bool{
	"dr.":   true,
	"mr.":   true,
	"mrs.":  true,
	"ms.":   true,
	"st.":   true,
	"prof.": true,
	"sr.":   true,
	"jr.":   true,
	"gen.":  true,
	"rev.":  true,
	"hon.":  true,
	"vs.":   true,
	"etc.":  true,
	"no.":   true,
}

const closingQuotes = "\"'”’»"

// Group 把 Cue 序列按句子边界聚合成 Block
// 单个 Cue 内含多个句子时先预拆分为合成 Cue（时间按字符占比分摊），
// 防止一条多句的 ASR 行把两个句子悄悄并进同一个 Block。
// 结尾未终结的 Cue 形成最后一个残块。
func Group(cues []models.Cue) []models.Block {
	cues = SplitCompoundCues(cues)

	var blocks []models.Block
	var current models.Block
	var runningText strings.Builder

	for _, cue := range cues {
		current = append(current, cue)
		if runningText.Len() > 0 {
			runningText.WriteByte(' ')
		}
		runningText.WriteString(cue.Text)

		if endsSentence(runningText.String()) {
			blocks = append(blocks, current)
			current = nil
			runningText.Reset()
		}
	}

	// 残余的未终结 Cue
	if len(current) > 0 {
		blocks = append(blocks, current)
	}

	return blocks
}

// SplitCompoundCues 把单行内含多个句子的 Cue 拆分为多个合成 Cue
// 时间戳按各句字符长度占比分摊原 Cue 的时长
func SplitCompoundCues(cues []models.Cue) []models.Cue {
	var out []models.Cue
	for _, cue := range cues {
		parts := splitSentences(cue.Text)
		if len(parts) <= 1 {
			out = append(out, cue)
			continue
		}

		total := 0
		for _, p := range parts {
			total += runeLen(p)
		}

		t := cue.Start
		for i, p := range parts {
			end := t + cue.Duration()*float64(runeLen(p))/float64(total)
			if i == len(parts)-1 {
				end = cue.End // 吸收浮点分摊误差
			}
			out = append(out, models.Cue{Start: t, End: end, Text: p})
			t = end
		}
	}

	// 拆分后重排序号
	for i := range out {
		out[i].Index = i
	}
	return out
}

// splitSentences 按句子终结符切分文本，缩写处不切
func splitSentences(text string) []string {
	runes := []rune(text)
	var parts []string
	start := 0

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r != '.' && r != '?' && r != '!' {
			continue
		}
		end := i + 1
		if end < len(runes) && strings.ContainsRune(closingQuotes, runes[end]) {
			end++
		}
		candidate := strings.TrimSpace(string(runes[start:end]))
		if candidate == "" {
			continue
		}
		if r == '.' && endsWithAbbreviation(candidate) {
			continue
		}
		parts = append(parts, candidate)
		i = end - 1
		start = end
	}

	if rest := strings.TrimSpace(string(runes[start:])); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// endsSentence 文本以句子终结符结尾且末尾不是缩写
func endsSentence(text string) bool {
	if !endsWithTerminator(text) {
		return false
	}
	trimmed := strings.TrimSpace(text)
	stripped := strings.TrimRight(trimmed, closingQuotes)
	if !strings.HasSuffix(stripped, ".") {
		// ? 和 ! 不会出现在缩写里
		return true
	}
	return !endsWithAbbreviation(stripped)
}

// endsWithTerminator 文本以 . ? ! 结尾（允许后跟一个闭引号）
func endsWithTerminator(text string) bool {
	trimmed := strings.TrimRight(strings.TrimSpace(text), closingQuotes)
	if trimmed == "" {
		return false
	}
	last := trimmed[len(trimmed)-1]
	return last == '.' || last == '?' || last == '!'
}

// endsWithAbbreviation 判断文本末尾的 "xxx." 是否为缩写：
// (a) 句中的单个大写字母加点（人名首字母，如 "He met J."）
// (b) 连续的 字母. 组（两组以上的首字母缩略词，如 "U.S."）
// (c) 固定的称谓缩写表（"Dr." "Prof." 等）
func endsWithAbbreviation(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || !strings.HasSuffix(trimmed, ".") {
		return false
	}

	// 取末尾 token
	idx := strings.LastIndexFunc(trimmed, unicode.IsSpace)
	token := trimmed[idx+1:]

	// (c) 称谓缩写
	if titleAbbreviations[strings.ToLower(token)] {
		return true
	}

	// (a) 单个大写字母 + 点，且前面还有其他内容（孤立的 "A." 是完整句子，不是首字母）
	tr := []rune(token)
	if len(tr) == 2 && unicode.IsUpper(tr[0]) && tr[1] == '.' && idx >= 0 {
		return true
	}

	// (b) 首字母缩略词：两组以上的 字母. 对
	return isAcronym(tr)
}

func isAcronym(token []rune) bool {
	if len(token) < 4 || len(token)%2 != 0 {
		return false
	}
	for i := 0; i < len(token); i += 2 {
		if !unicode.IsLetter(token[i]) || token[i+1] != '.' {
			return false
		}
	}
	return true
}

func runeLen(s string) int {
	return len([]rune(s))
}
