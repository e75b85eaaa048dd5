package aligner

import (
	"context"
	"log"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/z-wentao/polysub/pkg/config"
	"github.com/z-wentao/polysub/pkg/models"
)

// 对齐事件类型（写入 TraceRecord，兜底事件需要与锚点恢复区分开统计）
const (
	EventMatch      = "match"      // 正常匹配
	EventRepaired   = "repaired"   // 经修复后找到
	EventUnverified = "unverified" // 位置无法核实，按长度估算推进
	EventAnchor     = "anchor"     // 锚点恢复：用下一个 Block 推断出缺口
	EventFallback   = "fallback"   // 终极兜底：强制推进游标
)

// Reconciler 匹配调和器
// 包装对外部匹配器的调用：窗口构建、幻觉修复、锚点恢复、游标推进。
// 保证 Reconcile 总是终止且 newCursor >= cursor。
type Reconciler struct {
	oracle Oracle
	cfg    config.AlignerConfig
}

func NewReconciler(oracle Oracle, cfg config.AlignerConfig) *Reconciler {
	return &Reconciler{oracle: oracle, cfg: cfg}
}

// Reconcile 为一个 Block 在译文中定位匹配子串并推进游标
// cursor 是译文中的字节偏移；返回 (匹配文本, 新游标, 事件类型)
func (r *Reconciler) Reconcile(ctx context.Context, block models.Block, cursor int, translated string, nextBlockText string) (string, int, string) {
	// 窗口和上下文按字符（rune）度量，字节度量会让多字节语言的有效窗口缩水
	windowEnd := advanceRunes(translated, cursor, r.cfg.WindowSize)
	window := translated[cursor:windowEnd]

	contextStart := retreatRunes(translated, cursor, r.cfg.ContextSize)
	contextPreview := translated[contextStart:cursor]

	blockText := block.Text()
	if strings.TrimSpace(window) == "" {
		// 译文已经走完，剩余 Block 只能留空
		return "", cursor, EventFallback
	}

	req := MatchRequest{
		SourceText:     blockText,
		WindowText:     window,
		ContextText:    contextPreview,
		NextSourceText: nextBlockText,
	}

	matched, err := MatchWithRetry(ctx, r.oracle, req, r.cfg.MaxRetries)
	if err != nil || strings.TrimSpace(matched) == "" {
		return r.recover(ctx, block, cursor, translated, window, nextBlockText)
	}

	event := EventMatch
	repaired, found := repairVerbatim(window, matched)
	if found && repaired != matched {
		event = EventRepaired
	}
	matched = repaired
	matched = r.trimRepeatedSuffix(blockText, matched)
	matched = r.trimOverlongMatch(blockText, matched)

	if idx := strings.Index(window, matched); idx >= 0 {
		return matched, cursor + idx + len(matched), event
	}

	// 匹配器的答案不在窗口里且修不回来：保留文本，按其字符长度估算推进
	log.Printf("   ⚠️ 匹配文本未在搜索窗口中找到，按长度估算推进游标")
	newCursor := advanceRunes(translated, cursor, runeLen(matched))
	return matched, newCursor, EventUnverified
}

// recover 空匹配恢复：先尝试锚点回溯，再走终极兜底
func (r *Reconciler) recover(ctx context.Context, block models.Block, cursor int, translated, window, nextBlockText string) (string, int, string) {
	// 锚点恢复：当前 Block 匹配不到，但它的译文一定在下一个 Block 的译文之前。
	// 用下一个 Block 的文本在同一窗口中定位，窗口开头到锚点之间就是当前 Block 的缺口。
	if nextBlockText != "" {
		req := MatchRequest{SourceText: nextBlockText, WindowText: window}
		anchor, err := MatchWithRetry(ctx, r.oracle, req, r.cfg.MaxRetries)
		if err == nil && strings.TrimSpace(anchor) != "" {
			anchor, found := repairVerbatim(window, anchor)
			if found {
				j := strings.Index(window, anchor)
				gap := strings.TrimSpace(window[:j])
				log.Printf("   🔗 锚点恢复成功：缺口 %d 字节归当前 Block", j)
				return gap, cursor + j, EventAnchor
			}
		}
	}

	// 终极兜底：按源文本字符长度（乘可配置比例）强制推进，保证游标永不停滞。
	// 代价是已知的覆盖缺口，留给校验器报告。
	advance := int(float64(runeLen(block.Text())) * r.cfg.FallbackRatio)
	newCursor := advanceRunes(translated, cursor, advance)
	return "", newCursor, EventFallback
}

const quoteChars = "\"'“”‘’«»"

// repairVerbatim 逐字修复：匹配器偶尔会给答案加引号或多出一个幻觉字符
// 返回（可能修复后的文本, 是否在窗口中逐字找到）
func repairVerbatim(window, matched string) (string, bool) {
	matched = strings.TrimSpace(matched)
	if matched == "" {
		return matched, false
	}
	if strings.Contains(window, matched) {
		return matched, true
	}

	// 去除首尾引号
	stripped := strings.TrimSpace(strings.Trim(matched, quoteChars))
	if stripped != "" && strings.Contains(window, stripped) {
		return stripped, true
	}

	// 去掉单个尾字符（常见的单字符幻觉标点）
	if trimmed := strings.TrimSpace(trimLastRune(matched)); trimmed != "" && strings.Contains(window, trimmed) {
		return trimmed, true
	}

	return matched, false
}

// trimRepeatedSuffix 重复后缀裁剪
// 窗口里出现重复短语（如 "posso ir? posso ir?"）时匹配器可能把两份都抄进来，
// 其中第二份属于下一个 Block。检测归一化后的重复后缀，仅当裁剪让
// 匹配/源长度比更接近经验值时才裁（源文本本身也可能重复，如 "Bye bye."）。
func (r *Reconciler) trimRepeatedSuffix(sourceText, match string) string {
	srcLen := runeLen(sourceText)
	if match == "" || srcLen < 5 {
		return match
	}

	runes := []rune(match)
	n := len(runes)

	for length := n / 2; length > 3; length-- {
		suffix := runes[n-length:]
		// 后缀必须从词的边界开始，避免吃掉前一部分的标点
		r0 := suffix[0]
		if !unicode.IsLetter(r0) && !unicode.IsDigit(r0) && !strings.ContainsRune(quoteChars+"¿¡", r0) {
			continue
		}

		remainder := runes[:n-length]
		normSuffix := normalizeForCompare(string(suffix))
		if normSuffix == "" {
			continue
		}
		if !strings.HasSuffix(normalizeForCompare(string(remainder)), normSuffix) {
			continue
		}

		candidate := strings.TrimSpace(string(remainder))
		ratioOrig := float64(n) / float64(srcLen)
		ratioCand := float64(runeLen(candidate)) / float64(srcLen)

		if math.Abs(ratioCand-r.cfg.ExpectedRatio) < math.Abs(ratioOrig-r.cfg.ExpectedRatio) {
			log.Printf("   ✂️ 检测到重复后缀 %q，裁剪后长度比 %.2f -> %.2f", string(suffix), ratioOrig, ratioCand)
			return candidate
		}
		// 检测到重复但裁剪会恶化长度比：源文本可能本身就重复，保留
		return match
	}
	return match
}

// trimOverlongMatch 长度比看门狗
// 匹配文本相对源 Block 过长（疑似把下一句也吞了进来）时，
// 尝试在第一个结构分隔符处截断，仅当截断让长度比更接近经验值时生效。
func (r *Reconciler) trimOverlongMatch(sourceText, match string) string {
	srcLen := runeLen(sourceText)
	if srcLen == 0 || match == "" {
		return match
	}

	ratio := float64(runeLen(match)) / float64(srcLen)
	if ratio <= r.cfg.MaxLengthRatio {
		return match
	}

	idx := strings.IndexAny(match, ":.;–—-")
	if idx < 0 {
		return match
	}
	_, width := utf8.DecodeRuneInString(match[idx:])
	prefix := strings.TrimSpace(match[:idx+width])
	if prefix == "" {
		return match
	}

	prefixRatio := float64(runeLen(prefix)) / float64(srcLen)
	if math.Abs(prefixRatio-r.cfg.ExpectedRatio) < math.Abs(ratio-r.cfg.ExpectedRatio) {
		log.Printf("   ✂️ 匹配过长（比例 %.2f），在结构分隔符处截断 -> %.2f", ratio, prefixRatio)
		return prefix
	}
	return match
}

// normalizeForCompare 归一化比较：去掉所有非字母数字并转小写
func normalizeForCompare(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	_, width := utf8.DecodeLastRuneInString(s)
	return s[:len(s)-width]
}

// advanceRunes 从字节偏移 start 向前走 n 个 rune，返回新的字节偏移（钳制在文本末尾）
// 启发式推进统一用它，既按字符度量又不会把多字节字符劈开
func advanceRunes(s string, start, n int) int {
	i := start
	for n > 0 && i < len(s) {
		_, width := utf8.DecodeRuneInString(s[i:])
		i += width
		n--
	}
	return i
}

// retreatRunes 从字节偏移 start 向后退 n 个 rune，返回新的字节偏移（钳制在 0）
func retreatRunes(s string, start, n int) int {
	i := start
	for n > 0 && i > 0 {
		_, width := utf8.DecodeLastRuneInString(s[:i])
		i -= width
		n--
	}
	return i
}
