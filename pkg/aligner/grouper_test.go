package aligner

import (
	"math"
	"testing"

	"github.com/z-wentao/polysub/pkg/models"
)

func TestGroupSentenceBoundary(t *testing.T) {
	cues := []models.Cue{
		{Index: 0, Start: 0, End: 1, Text: "Dr. Smith"},
		{Index: 1, Start: 1, End: 2, Text: "arrived."},
		{Index: 2, Start: 2, End: 3, Text: "He left."},
	}

	blocks := Group(cues)
	if len(blocks) != 2 {
		t.Fatalf("期望 2 个 Block, 实际 %d 个", len(blocks))
	}
	if got := blocks[0].Text(); got != "Dr. Smith arrived." {
		t.Errorf("Block 0 文本错误: %q", got)
	}
	if got := blocks[1].Text(); got != "He left." {
		t.Errorf("Block 1 文本错误: %q", got)
	}
}

func TestGroupAbbreviationDoesNotClose(t *testing.T) {
	// "Dr." 不结束句子，"U.S." 也不结束
	cases := []struct {
		text string
		want bool
	}{
		{"He visited Dr.", false},
		{"He works for the U.S.", false},
		{"He met J.", false},
		{"A.", true}, // 孤立的单字母句是完整句子
		{"He left.", true},
		{"Really?", true},
		{"Stop!", true},
		{"no terminator", false},
	}
	for _, c := range cases {
		if got := endsSentence(c.text); got != c.want {
			t.Errorf("endsSentence(%q) = %v, 期望 %v", c.text, got, c.want)
		}
	}
}

func TestGroupPartitionInvariant(t *testing.T) {
	// 每个 cue 恰好归属一个 Block，顺序保持
	cues := []models.Cue{
		{Start: 0, End: 1, Text: "one"},
		{Start: 1, End: 2, Text: "two."},
		{Start: 2, End: 3, Text: "three"},
		{Start: 3, End: 4, Text: "four"},
		{Start: 4, End: 5, Text: "five!"},
		{Start: 5, End: 6, Text: "tail without end"},
	}

	blocks := Group(cues)

	var flattened []models.Cue
	for _, b := range blocks {
		flattened = append(flattened, b...)
	}
	if len(flattened) != len(cues) {
		t.Fatalf("cue 数量不守恒: %d != %d", len(flattened), len(cues))
	}
	for i := range cues {
		if flattened[i].Text != cues[i].Text {
			t.Errorf("cue %d 顺序/内容错误: %q != %q", i, flattened[i].Text, cues[i].Text)
		}
	}

	// 残块：最后一个未终结的 cue 也要有归属
	last := blocks[len(blocks)-1]
	if last.Text() != "tail without end" {
		t.Errorf("残块文本错误: %q", last.Text())
	}
}

func TestSplitCompoundCues(t *testing.T) {
	cues := []models.Cue{
		{Start: 0, End: 4, Text: "One two. Four."},
	}

	out := SplitCompoundCues(cues)
	if len(out) != 2 {
		t.Fatalf("期望拆成 2 个 cue, 实际 %d 个", len(out))
	}
	if out[0].Text != "One two." || out[1].Text != "Four." {
		t.Fatalf("拆分文本错误: %q / %q", out[0].Text, out[1].Text)
	}

	// 时间按字符占比分摊，首尾对齐原 cue
	if out[0].Start != 0 {
		t.Errorf("首段起点错误: %f", out[0].Start)
	}
	if out[1].End != 4 {
		t.Errorf("末段终点必须吸收误差对齐原终点: %f", out[1].End)
	}
	if math.Abs(out[0].End-out[1].Start) > 1e-9 {
		t.Errorf("拆分段必须首尾相接: %f vs %f", out[0].End, out[1].Start)
	}
	// "One two." 8 字符 / "Four." 5 字符
	wantSplit := 4.0 * 8.0 / 13.0
	if math.Abs(out[0].End-wantSplit) > 1e-9 {
		t.Errorf("时间分摊错误: %f, 期望 %f", out[0].End, wantSplit)
	}

	// 重排序号
	if out[0].Index != 0 || out[1].Index != 1 {
		t.Errorf("序号未重排: %d, %d", out[0].Index, out[1].Index)
	}
}

func TestSplitCompoundCuesAbbreviationGuard(t *testing.T) {
	cues := []models.Cue{
		{Start: 0, End: 2, Text: "Dr. Smith arrived."},
	}
	out := SplitCompoundCues(cues)
	if len(out) != 1 {
		t.Fatalf("缩写处不应拆分, 实际拆成 %d 个", len(out))
	}
}

func TestGroupEmptyInput(t *testing.T) {
	if blocks := Group(nil); len(blocks) != 0 {
		t.Errorf("空输入应返回空结果, 实际 %d 个 Block", len(blocks))
	}
}

func TestEndsSentenceWithClosingQuote(t *testing.T) {
	if !endsSentence(`He said "stop."`) {
		t.Error("句号后跟闭引号应视为句子结束")
	}
	if !endsSentence("É mesmo?”") {
		t.Error("问号后跟闭引号应视为句子结束")
	}
}
