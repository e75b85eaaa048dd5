package aligner

import (
	"math"
	"strings"
	"testing"

	"github.com/z-wentao/polysub/pkg/config"
	"github.com/z-wentao/polysub/pkg/models"
)

func testBlock(start, end float64) models.Block {
	return models.Block{{Start: start, End: end, Text: "source"}}
}

func TestDistributeEmptyMatch(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	if got := d.Distribute(testBlock(0, 2), ""); got != nil {
		t.Errorf("空匹配应返回空列表, 实际 %d 个段", len(got))
	}
	if got := d.Distribute(testBlock(0, 2), "   "); got != nil {
		t.Errorf("纯空白匹配应返回空列表, 实际 %d 个段", len(got))
	}
}

func TestDistributeSingleShortSentence(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	segments := d.Distribute(testBlock(10, 14), "Uma frase curta.")
	if len(segments) != 1 {
		t.Fatalf("期望 1 个段, 实际 %d 个", len(segments))
	}
	if segments[0].Start != 10 || segments[0].End != 14 {
		t.Errorf("段必须占满整个 Block: [%.1f, %.1f]", segments[0].Start, segments[0].End)
	}
	if segments[0].Text != "Uma frase curta." {
		t.Errorf("文本错误: %q", segments[0].Text)
	}
}

func TestDistributeContiguousTiming(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	text := "A primeira frase completa vai aqui sem problema. A segunda frase completa vem logo depois dela. E ainda temos uma terceira frase no fim."
	segments := d.Distribute(testBlock(0, 12), text)
	if len(segments) < 2 {
		t.Fatalf("多句文本应产出多个段, 实际 %d 个", len(segments))
	}

	// 首尾对齐 Block，相邻段首尾相接
	if segments[0].Start != 0 {
		t.Errorf("首段起点错误: %f", segments[0].Start)
	}
	if segments[len(segments)-1].End != 12 {
		t.Errorf("末段终点必须吸收浮点误差对齐 Block 终点: %f", segments[len(segments)-1].End)
	}
	for i := 1; i < len(segments); i++ {
		if math.Abs(segments[i].Start-segments[i-1].End) > 1e-9 {
			t.Errorf("段 %d 与前段不相接: %f vs %f", i, segments[i].Start, segments[i-1].End)
		}
	}

	// 文本不丢失（忽略换行和空白差异）
	joined := strings.Join(strings.Fields(strings.ReplaceAll(collectText(segments), "\n", " ")), " ")
	want := strings.Join(strings.Fields(text), " ")
	if joined != want {
		t.Errorf("分发后文本不守恒:\n%q\n%q", joined, want)
	}
}

func collectText(segments []models.Segment) string {
	var sb strings.Builder
	for i, s := range segments {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func TestLayoutChunksProportional(t *testing.T) {
	chunks := layoutChunks([]string{"aaaa", "aa"}, 0, 3)
	if len(chunks) != 2 {
		t.Fatalf("期望 2 个块, 实际 %d 个", len(chunks))
	}
	// 4:2 的字符比 → 2s : 1s
	if math.Abs(chunks[0].end-2.0) > 1e-9 {
		t.Errorf("时长分摊错误: %f", chunks[0].end)
	}
	if chunks[1].end != 3.0 {
		t.Errorf("末块终点错误: %f", chunks[1].end)
	}
}

func TestMergeMicroChunks(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	// 非句末的微段并入后继
	merged := d.mergeMicroChunks([]chunk{
		{text: "um pedaço", start: 0, end: 0.5},
		{text: "que continua a frase até ao fim", start: 0.5, end: 4},
	})
	if len(merged) != 1 {
		t.Fatalf("微段应并入后继, 实际 %d 个块", len(merged))
	}
	if merged[0].start != 0 || merged[0].end != 4 {
		t.Errorf("合并后时间错误: [%.1f, %.1f]", merged[0].start, merged[0].end)
	}

	// 孤尾段被前段吸收，即使前段是完整句子
	merged = d.mergeMicroChunks([]chunk{
		{text: "Uma frase completa terminada.", start: 0, end: 3.5},
		{text: "xau", start: 3.5, end: 3.8},
	})
	if len(merged) != 1 {
		t.Fatalf("孤尾段应被吸收, 实际 %d 个块", len(merged))
	}

	// 合并会超出长度预算时保留短段
	long1 := strings.Repeat("a", 50)
	long2 := strings.Repeat("b", 50)
	merged = d.mergeMicroChunks([]chunk{
		{text: long1, start: 0, end: 0.5},
		{text: long2, start: 0.5, end: 4},
	})
	if len(merged) != 2 {
		t.Fatalf("超预算合并应被否决, 实际 %d 个块", len(merged))
	}
}

func TestMergeMicroChunksIdempotent(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	in := []chunk{
		{text: "oi", start: 0, end: 0.3},
		{text: "uma frase mais longa aqui", start: 0.3, end: 2},
		{text: "sim", start: 2, end: 2.2},
		{text: "outra frase igualmente longa", start: 2.2, end: 5},
	}

	once := d.mergeMicroChunks(in)
	twice := d.mergeMicroChunks(once)
	if len(once) != len(twice) {
		t.Fatalf("合并不收敛: %d -> %d", len(once), len(twice))
	}
	for i := range once {
		if once[i] != twice[i] {
			t.Errorf("块 %d 二次合并后改变: %+v != %+v", i, once[i], twice[i])
		}
	}
}

func TestWrapTextBalanced(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	text := "esta linha é demasiado comprida para caber numa única linha de legenda"
	wrapped := d.wrapText(text)

	lines := strings.Split(wrapped, "\n")
	if len(lines) != 2 {
		t.Fatalf("期望 2 行, 实际 %d 行: %q", len(lines), wrapped)
	}
	for i, line := range lines {
		if runeLen(line) > 42 {
			t.Errorf("第 %d 行超过 42 字符: %d", i+1, runeLen(line))
		}
	}

	// 换行绝不截断文本
	if strings.ReplaceAll(wrapped, "\n", " ") != text {
		t.Errorf("换行丢失了文本: %q", wrapped)
	}
}

func TestWrapTextShortUnchanged(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)
	if got := d.wrapText("curta"); got != "curta" {
		t.Errorf("短文本不应换行: %q", got)
	}
}

func TestWrapTextGreedyFallback(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	// 三段长词找不到平衡二分点（任一侧都超限），退回贪心逐词
	text := strings.Repeat("palavracomprida ", 7)
	wrapped := d.wrapText(strings.TrimSpace(text))
	for i, line := range strings.Split(wrapped, "\n") {
		if runeLen(line) > 42 {
			t.Errorf("贪心换行第 %d 行超限: %d", i+1, runeLen(line))
		}
	}
}

func TestSplitByWordsMidpoint(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	text := strings.TrimSpace(strings.Repeat("palavra ", 20)) // 159 字符
	parts := d.splitByWords(text)
	if len(parts) < 2 {
		t.Fatalf("超长文本应被二分, 实际 %d 块", len(parts))
	}
	for i, p := range parts {
		if runeLen(p) > 80 {
			t.Errorf("块 %d 超过预算: %d", i, runeLen(p))
		}
	}
	if strings.Join(parts, " ") != text {
		t.Errorf("二分丢失了文本")
	}
}

func TestSplitByWordsNoWhitespace(t *testing.T) {
	d := NewDistributor(config.DefaultAligner().Distributor)

	// 完全没有空白：紧急硬切，不能死循环
	text := strings.Repeat("x", 100)
	parts := d.splitByWords(text)
	total := 0
	for _, p := range parts {
		total += runeLen(p)
	}
	if total != 100 {
		t.Errorf("硬切丢失了字符: %d", total)
	}
}
