package models

import "strings"

// Cue 原始字幕行（由上游转录产生，不可变）
// 时间戳单位为秒，满足 Start < End 且全轨道单调递增
type Cue struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (c Cue) Duration() float64 {
	return c.End - c.Start
}

// Block 句子级别的 Cue 分组，提交给匹配器的原子单位
// 不变量：Block 序列恰好划分 Cue 序列（每个 Cue 属于且仅属于一个 Block，顺序保持）
type Block []Cue

// Text 拼接 Block 内所有 Cue 的文本
func (b Block) Text() string {
	parts := make([]string, 0, len(b))
	for _, c := range b {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, " ")
}

func (b Block) Start() float64 {
	if len(b) == 0 {
		return 0
	}
	return b[0].Start
}

func (b Block) End() float64 {
	if len(b) == 0 {
		return 0
	}
	return b[len(b)-1].End
}

func (b Block) Duration() float64 {
	return b.End() - b.Start()
}

// Segment 输出字幕段（分发器产出，不可变）
// Text 在换行处理后可能包含 "\n"
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

func (s Segment) Duration() float64 {
	return s.End - s.Start
}

// ValidationStats 校验统计信息
type ValidationStats struct {
	MaxLines        int     `json:"max_lines"`
	OrigDuration    float64 `json:"orig_duration"`
	TargetDuration  float64 `json:"target_duration"`
	SegmentCount    int     `json:"segment_count"`
	UncoveredCues   int     `json:"uncovered_cues"`
	HighCPSSegments int     `json:"high_cps_segments"`
}

// ValidationReport 整轨校验报告（每次运行产出一份，只读）
type ValidationReport struct {
	Valid    bool            `json:"valid"`
	Errors   []string        `json:"errors"`
	Warnings []string        `json:"warnings"`
	Stats    ValidationStats `json:"stats"`
}
