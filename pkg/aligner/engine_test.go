package aligner

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/z-wentao/polysub/pkg/models"
)

// recordingTracer 收集对齐记录供断言
type recordingTracer struct {
	records []TraceRecord
}

func (rt *recordingTracer) Trace(rec TraceRecord) {
	rt.records = append(rt.records, rec)
}

func TestEngineEndToEnd(t *testing.T) {
	cues := []models.Cue{
		{Index: 0, Start: 0, End: 2, Text: "A."},
		{Index: 1, Start: 2, End: 4, Text: "B."},
		{Index: 2, Start: 4, End: 6, Text: "C."},
	}
	translated := "X. Y. Z."

	oracle := &stubOracle{fn: func(req MatchRequest) (string, error) {
		switch req.SourceText {
		case "A.":
			return "X.", nil
		case "B.":
			return "Y.", nil
		case "C.":
			return "Z.", nil
		}
		return "", fmt.Errorf("意外的源文本: %q", req.SourceText)
	}}

	tracer := &recordingTracer{}
	engine := NewEngine(oracle, testAlignerConfig(), tracer)

	segments, err := engine.Run(context.Background(), cues, translated)
	if err != nil {
		t.Fatalf("对齐失败: %v", err)
	}
	if len(segments) != 3 {
		t.Fatalf("期望 3 个段, 实际 %d 个", len(segments))
	}

	wantTexts := []string{"X.", "Y.", "Z."}
	for i, seg := range segments {
		if seg.Text != wantTexts[i] {
			t.Errorf("段 %d 文本错误: %q", i, seg.Text)
		}
		if math.Abs(seg.Duration()-2.0) > 1e-9 {
			t.Errorf("段 %d 时长错误: %.2f, 期望 2.00", i, seg.Duration())
		}
	}

	// 游标只进不退
	prev := 0
	for i, rec := range tracer.records {
		if rec.Cursor < prev {
			t.Errorf("记录 %d 游标回退: %d < %d", i, rec.Cursor, prev)
		}
		prev = rec.Cursor
	}

	report := Validate(cues, segments)
	if !report.Valid {
		t.Errorf("端到端结果应通过校验: %v", report.Errors)
	}
}

func TestEngineEmptyInputs(t *testing.T) {
	engine := NewEngine(&stubOracle{fn: func(MatchRequest) (string, error) { return "", nil }}, testAlignerConfig(), nil)

	if _, err := engine.Run(context.Background(), nil, "texto"); err == nil {
		t.Error("空 cue 列表必须直接失败")
	}
	cues := []models.Cue{{Start: 0, End: 1, Text: "hi."}}
	if _, err := engine.Run(context.Background(), cues, "   "); err == nil {
		t.Error("空译文必须直接失败")
	}
}

func TestEngineAllFallbacks(t *testing.T) {
	// 匹配器全程失效：引擎必须跑完且游标单调，缺口留给校验器
	cues := []models.Cue{
		{Start: 0, End: 2, Text: "First sentence here."},
		{Start: 2, End: 4, Text: "Second sentence here."},
	}
	oracle := &stubOracle{fn: func(MatchRequest) (string, error) {
		return "", fmt.Errorf("下游全挂")
	}}

	tracer := &recordingTracer{}
	engine := NewEngine(oracle, testAlignerConfig(), tracer)

	segments, err := engine.Run(context.Background(), cues, "tradução qualquer que não corresponde")
	if err != nil {
		t.Fatalf("兜底路径不应报错: %v", err)
	}
	if len(segments) != 0 {
		t.Errorf("全兜底不应产出段, 实际 %d 个", len(segments))
	}
	for _, rec := range tracer.records {
		if rec.Event != EventFallback {
			t.Errorf("期望全部为兜底事件, 实际 %s", rec.Event)
		}
	}
}

func TestEngineCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(&stubOracle{fn: func(MatchRequest) (string, error) { return "x", nil }}, testAlignerConfig(), nil)
	cues := []models.Cue{{Start: 0, End: 1, Text: "hi."}}

	if _, err := engine.Run(ctx, cues, "oi."); err == nil {
		t.Error("已取消的 Context 必须中止对齐")
	}
}
