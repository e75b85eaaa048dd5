package subtitle

import (
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/z-wentao/polysub/pkg/models"
)

const sampleVTT = `WEBVTT

1
00:00:00.000 --> 00:00:02.500
Hello there.

2
00:00:02.500 --> 00:00:05.000
Line one
Line two
`

const sampleSRT = `1
00:00:00,000 --> 00:00:02,500
Hello there.

2
00:00:02,500 --> 00:00:05,000
Second cue.
`

func TestParseVTT(t *testing.T) {
	cues, err := Parse(sampleVTT)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("期望 2 个 cue, 实际 %d 个", len(cues))
	}

	if cues[0].Text != "Hello there." {
		t.Errorf("cue 0 文本错误: %q", cues[0].Text)
	}
	if cues[0].Start != 0 || cues[0].End != 2.5 {
		t.Errorf("cue 0 时间错误: [%.3f, %.3f]", cues[0].Start, cues[0].End)
	}

	// 多行文本以换行保留
	if cues[1].Text != "Line one\nLine two" {
		t.Errorf("多行文本未保留换行: %q", cues[1].Text)
	}
	if cues[0].Index != 0 || cues[1].Index != 1 {
		t.Errorf("序号错误: %d, %d", cues[0].Index, cues[1].Index)
	}
}

func TestParseSRT(t *testing.T) {
	cues, err := Parse(sampleSRT)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("期望 2 个 cue, 实际 %d 个", len(cues))
	}
	if cues[1].Text != "Second cue." {
		t.Errorf("cue 1 文本错误: %q", cues[1].Text)
	}
	if cues[1].Start != 2.5 {
		t.Errorf("逗号时间戳解析错误: %f", cues[1].Start)
	}
}

func TestParseIndexLineNotSwallowed(t *testing.T) {
	// 后续 cue 的序号行绝不能混进上一个 cue 的文本
	content := "1\n00:00:00,000 --> 00:00:02,000\nHello.\n\n2\n00:00:02,000 --> 00:00:04,000\nWorld.\n"

	cues, err := Parse(content)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("期望 2 个 cue, 实际 %d 个", len(cues))
	}
	if cues[0].Text != "Hello." {
		t.Errorf("序号行混入了上一个 cue 的文本: %q", cues[0].Text)
	}
	if cues[1].Text != "World." {
		t.Errorf("cue 1 文本错误: %q", cues[1].Text)
	}
}

func TestParseDigitsInsideCueTextKept(t *testing.T) {
	// cue 内部（时间戳之后、空行之前）的纯数字行是正文
	content := `WEBVTT

00:00:00.000 --> 00:00:02.000
Chapter
42

00:00:02.000 --> 00:00:04.000
next
`
	cues, err := Parse(content)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	if len(cues) != 2 {
		t.Fatalf("期望 2 个 cue, 实际 %d 个", len(cues))
	}
	if cues[0].Text != "Chapter\n42" {
		t.Errorf("正文中的数字行丢失: %q", cues[0].Text)
	}
}

func TestParseRejectsInvertedTimestamps(t *testing.T) {
	content := `WEBVTT

00:00:05.000 --> 00:00:02.000
backwards
`
	if _, err := Parse(content); err == nil {
		t.Fatal("结束早于开始的区间必须报错")
	}
}

func TestParseTimestamp(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"00:00:00.000", 0},
		{"00:01:05.500", 65.5},
		{"01:00:00,250", 3600.25},
	}
	for _, c := range cases {
		got, err := ParseTimestamp(c.in)
		if err != nil {
			t.Errorf("ParseTimestamp(%q) 报错: %v", c.in, err)
			continue
		}
		if math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ParseTimestamp(%q) = %f, 期望 %f", c.in, got, c.want)
		}
	}

	if _, err := ParseTimestamp("1:2"); err == nil {
		t.Error("非法格式必须报错")
	}
}

func TestGenerateVTTRoundTrip(t *testing.T) {
	segments := parseToSegments(t, sampleVTT)

	out := filepath.Join(t.TempDir(), "out.vtt")
	if err := GenerateVTT(segments, out); err != nil {
		t.Fatalf("生成 VTT 失败: %v", err)
	}

	reparsed, err := ParseFile(out)
	if err != nil {
		t.Fatalf("重新解析失败: %v", err)
	}
	if len(reparsed) != len(segments) {
		t.Fatalf("cue 数量不一致: %d != %d", len(reparsed), len(segments))
	}
	for i := range segments {
		if reparsed[i].Text != segments[i].Text {
			t.Errorf("cue %d 文本不一致: %q != %q", i, reparsed[i].Text, segments[i].Text)
		}
		if math.Abs(reparsed[i].Start-segments[i].Start) > 0.001 {
			t.Errorf("cue %d 起点不一致: %f != %f", i, reparsed[i].Start, segments[i].Start)
		}
	}
}

func TestGenerateSRTRoundTrip(t *testing.T) {
	segments := parseToSegments(t, sampleVTT)

	out := filepath.Join(t.TempDir(), "out.srt")
	if err := GenerateSRT(segments, out); err != nil {
		t.Fatalf("生成 SRT 失败: %v", err)
	}

	reparsed, err := ParseFile(out)
	if err != nil {
		t.Fatalf("重新解析失败: %v", err)
	}
	if len(reparsed) != len(segments) {
		t.Fatalf("cue 数量不一致: %d != %d", len(reparsed), len(segments))
	}
}

func TestFormatTimes(t *testing.T) {
	if got := FormatVTTTime(65.5); got != "00:01:05.500" {
		t.Errorf("FormatVTTTime 错误: %q", got)
	}
	if got := FormatSRTTime(65.5); got != "00:01:05,500" {
		t.Errorf("FormatSRTTime 错误: %q", got)
	}
	if got := FormatVTTTime(3600.25); got != "01:00:00.250" {
		t.Errorf("FormatVTTTime 错误: %q", got)
	}
}

func parseToSegments(t *testing.T, content string) []models.Segment {
	t.Helper()
	cues, err := Parse(content)
	if err != nil {
		t.Fatalf("解析失败: %v", err)
	}
	segments := make([]models.Segment, 0, len(cues))
	for _, c := range cues {
		segments = append(segments, models.Segment{Start: c.Start, End: c.End, Text: strings.ReplaceAll(c.Text, "\n", " ")})
	}
	return segments
}
