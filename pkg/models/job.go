package models

import "time"

type JobStatus string

const (
	StatusPending    JobStatus = "pending"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// AlignmentJob 对齐任务记录
// 一次完整的运行：原始字幕轨道 + 完整译文 -> 目标语言字幕轨道
type AlignmentJob struct {
	JobID          string            `json:"job_id"`
	CueFile        string            `json:"cue_file"`        // 原始字幕文件名
	TargetLanguage string            `json:"target_language"` // 目标语言
	Status         JobStatus         `json:"status"`
	SegmentCount   int               `json:"segment_count"` // 生成的字幕段数量
	OutputPath     string            `json:"output_path"`   // 输出 VTT 文件路径
	Valid          bool              `json:"valid"`         // 校验是否通过
	ErrorCount     int               `json:"error_count"`
	WarningCount   int               `json:"warning_count"`
	Evaluation     *EvaluationResult `json:"evaluation,omitempty"` // 后台质量评估结果
	TotalCost      float64           `json:"total_cost"`           // 本次运行的 API 成本（美元）
	Error          string            `json:"error"`
	CreatedAt      time.Time         `json:"created_at"`
	CompletedAt    time.Time         `json:"completed_at"`
}

// EvaluationJob 后台翻译质量评估任务
// 在字幕段产出之后派发，与对齐主流程完全解耦
type EvaluationJob struct {
	JobID          string `json:"job_id"`
	TargetLanguage string `json:"target_language"`
	OriginalText   string `json:"original_text"`  // 源语言全文
	TranslationV1  string `json:"translation_v1"` // 初译版本（可为空，为空则只对 V2 打分）
	TranslationV2  string `json:"translation_v2"` // 实际用于对齐的版本

	// RabbitMQ 相关（不序列化到 JSON）
	DeliveryTag      uint64 `json:"-"`
	RabbitMQDelivery any    `json:"-"` // 用于 Ack/Nack
}

// EvaluationResult 质量评估结果
type EvaluationResult struct {
	BetterVersion string  `json:"better_version"`
	ScoreV1       float64 `json:"score_v1"`
	ScoreV2       float64 `json:"score_v2"`
	Reasoning     string  `json:"reasoning"`
}
