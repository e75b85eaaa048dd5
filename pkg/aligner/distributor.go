package aligner

import (
	"math"
	"strings"

	"github.com/z-wentao/polysub/pkg/config"
	"github.com/z-wentao/polysub/pkg/models"
)

// Distributor 把匹配到的译文子串切分为可读的、按时长加权的字幕段
type Distributor struct {
	cfg config.DistributorConfig
}

func NewDistributor(cfg config.DistributorConfig) *Distributor {
	return &Distributor{cfg: cfg}
}

// chunk 带时间的文本块（分发器内部中间态）
type chunk struct {
	text  string
	start float64
	end   float64
}

// Distribute 把一个 Block 的匹配文本分发为最终字幕段
// 四步：层级切分 -> 按字符占比配时 -> 微段合并 -> 换行
// matched 为空时返回空列表（该 Block 没有可分发的译文）
func (d *Distributor) Distribute(block models.Block, matched string) []models.Segment {
	matched = strings.TrimSpace(matched)
	if matched == "" || len(block) == 0 {
		return nil
	}

	chunks := d.splitChunks(matched)
	timed := layoutChunks(chunks, block.Start(), block.End())
	merged := d.mergeMicroChunks(timed)

	segments := make([]models.Segment, 0, len(merged))
	for _, c := range merged {
		segments = append(segments, models.Segment{
			Start: c.start,
			End:   c.end,
			Text:  d.wrapText(c.text),
		})
	}
	return segments
}

// splitChunks 层级切分：句子 -> 逗号 -> 词边界
// 除了完全没有空白的紧急硬切，产出的块不会超过长度预算
func (d *Distributor) splitChunks(text string) []string {
	var chunks []string
	for _, sentence := range splitSentences(text) {
		if runeLen(sentence) <= d.cfg.MaxChunkLength {
			chunks = append(chunks, sentence)
			continue
		}
		for _, part := range d.splitByCommas(sentence) {
			if runeLen(part) <= d.cfg.MaxChunkLength {
				chunks = append(chunks, part)
				continue
			}
			chunks = append(chunks, d.splitByWords(part)...)
		}
	}
	return chunks
}

// splitByCommas 把逗号分隔的片段累积到不超过预算的块里
func (d *Distributor) splitByCommas(text string) []string {
	parts := strings.Split(text, ",")

	var chunks []string
	current := ""
	for i, p := range parts {
		frag := strings.TrimSpace(p)
		if frag == "" {
			continue
		}
		if i < len(parts)-1 {
			frag += ","
		}
		switch {
		case current == "":
			current = frag
		case runeLen(current)+1+runeLen(frag) <= d.cfg.MaxChunkLength:
			current = current + " " + frag
		default:
			chunks = append(chunks, current)
			current = frag
		}
	}
	if current != "" {
		chunks = append(chunks, current)
	}
	return chunks
}

// splitByWords 超长块在离中点最近的空格处递归二分
func (d *Distributor) splitByWords(text string) []string {
	if runeLen(text) <= d.cfg.MaxChunkLength {
		return []string{text}
	}

	runes := []rune(text)
	mid := len(runes) / 2

	// 从中点向两侧搜索最近的空格，优先离中心近的一侧
	split := -1
	for offset := 0; offset <= mid; offset++ {
		if mid-offset > 0 && runes[mid-offset] == ' ' {
			split = mid - offset
			break
		}
		if mid+offset < len(runes) && runes[mid+offset] == ' ' {
			split = mid + offset
			break
		}
	}

	if split <= 0 || split >= len(runes)-1 {
		// 完全没有空白可用：紧急硬切
		return []string{string(runes[:mid]), string(runes[mid:])}
	}

	left := strings.TrimSpace(string(runes[:split]))
	right := strings.TrimSpace(string(runes[split:]))
	return append(d.splitByWords(left), d.splitByWords(right)...)
}

// layoutChunks 按字符长度占比把 Block 的总时长分摊给各块，首尾相接
func layoutChunks(texts []string, start, end float64) []chunk {
	total := 0
	for _, t := range texts {
		total += runeLen(t)
	}
	if total == 0 {
		return nil
	}

	duration := end - start
	out := make([]chunk, 0, len(texts))
	t := start
	for i, text := range texts {
		chunkEnd := t + duration*float64(runeLen(text))/float64(total)
		if i == len(texts)-1 {
			chunkEnd = end // 吸收浮点累积误差
		}
		out = append(out, chunk{text: text, start: t, end: chunkEnd})
		t = chunkEnd
	}
	return out
}

// mergeMicroChunks 微段合并
// 太短的块并入后继；后继是孤尾（亚秒级闪现）时无条件吸收。
// 合并后超出长度预算则保留短段不合并。一趟收敛：对输出再跑一趟不会再合并。
func (d *Distributor) mergeMicroChunks(chunks []chunk) []chunk {
	if len(chunks) <= 1 {
		return chunks
	}

	var out []chunk
	i := 0
	for i < len(chunks) {
		current := chunks[i]
		j := i + 1
		for j < len(chunks) {
			next := chunks[j]
			if !d.shouldMerge(current, next) {
				break
			}
			current = chunk{
				text:  current.text + " " + next.text,
				start: current.start,
				end:   next.end,
			}
			j++
		}
		out = append(out, current)
		i = j
	}
	return out
}

func (d *Distributor) shouldMerge(current, next chunk) bool {
	if runeLen(current.text)+1+runeLen(next.text) > d.cfg.MaxChunkLength {
		return false
	}
	if d.isMicro(current) && !endsWithTerminator(current.text) {
		return true
	}
	return d.isWidow(next)
}

func (d *Distributor) isMicro(c chunk) bool {
	return c.end-c.start < d.cfg.MinDuration || runeLen(c.text) < d.cfg.MinLength
}

func (d *Distributor) isWidow(c chunk) bool {
	return c.end-c.start < d.cfg.WidowDuration || runeLen(c.text) < d.cfg.WidowLength
}

// wrapText 行长超限时换行
// 先找让两行长度差最小且两行都不超限的空白断点；找不到就退回贪心逐词
// 换行（可能多于两行，绝不截断文本）。
func (d *Distributor) wrapText(text string) string {
	if runeLen(text) <= d.cfg.MaxLineLength {
		return text
	}

	runes := []rune(text)
	best, bestDiff := -1, math.MaxInt32
	for i, r := range runes {
		if r != ' ' {
			continue
		}
		left, right := i, len(runes)-i-1
		if left > d.cfg.MaxLineLength || right > d.cfg.MaxLineLength {
			continue
		}
		diff := left - right
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			bestDiff = diff
			best = i
		}
	}

	if best >= 0 {
		return strings.TrimSpace(string(runes[:best])) + "\n" + strings.TrimSpace(string(runes[best+1:]))
	}
	return greedyWrap(text, d.cfg.MaxLineLength)
}

func greedyWrap(text string, limit int) string {
	words := strings.Fields(text)
	var lines []string
	current := ""
	for _, w := range words {
		switch {
		case current == "":
			current = w
		case runeLen(current)+1+runeLen(w) <= limit:
			current = current + " " + w
		default:
			lines = append(lines, current)
			current = w
		}
	}
	if current != "" {
		lines = append(lines, current)
	}
	return strings.Join(lines, "\n")
}
