package evaluator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/z-wentao/polysub/pkg/models"
	"github.com/z-wentao/polysub/pkg/usage"
)

// Evaluator 翻译质量评审
// 比较两个翻译版本（或给单个版本打分）并输出裁决。
// 纯后台任务：结果不回流到对齐主流程。
type Evaluator struct {
	client *openai.Client
	model  string
	usage  *usage.Accumulator
}

func New(apiKey, model string, acc *usage.Accumulator) *Evaluator {
	return &Evaluator{
		client: openai.NewClient(apiKey),
		model:  model,
		usage:  acc,
	}
}

const judgeSystemPrompt = `You are an expert impartial judge of translation quality, specializing in %s.

YOUR GOAL:
Compare two translation versions (V1 and V2) of a source text and determine which is definitively better.

CRITERIA FOR PERFECT TRANSLATION (Score 10/10):
1. **Accuracy**: Zero loss of meaning. All nuances are preserved.
2. **Fluency**: Reads like a high-quality original text in %s, not a translation.
3. **Tone**: Perfectly matches the register (formal/informal/technical) of the source.
4. **Terminology**: Uses standard, domain-appropriate terminology consistently.
5. **Grammar**: Flawless grammar and punctuation.

SCORING GUIDE:
- 9-10: Exceptional. Native-level naturalness, perfect accuracy.
- 7-8: Good. Accurate but may sound slightly "translated" or have minor stylistic issues.
- 5-6: Acceptable. Conveys meaning but with noticeable errors or awkward phrasing.
- <5: Poor. Major inaccuracies or grammatical failures.

OUTPUT FORMAT (JSON):
{
  "better_version": "V1" or "V2",
  "score_v1": <0-10 score>,
  "score_v2": <0-10 score>,
  "reasoning": "<Detailed explanation, citing specific examples if possible.>"
}`

// Evaluate 执行一次质量评估
// V1 为空时退化为单版本打分（V1 视同 V2，better_version 固定为 V2）
func (e *Evaluator) Evaluate(ctx context.Context, job *models.EvaluationJob) (*models.EvaluationResult, error) {
	v1 := job.TranslationV1
	if v1 == "" {
		v1 = job.TranslationV2
	}

	userContent := fmt.Sprintf(`[ORIGINAL SOURCE TEXT]:
%s

[TRANSLATION V1 (Initial)]:
%s

[TRANSLATION V2 (Refined)]:
%s`, job.OriginalText, v1, job.TranslationV2)

	start := time.Now()
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: e.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: fmt.Sprintf(judgeSystemPrompt, job.TargetLanguage, job.TargetLanguage)},
			{Role: openai.ChatMessageRoleUser, Content: userContent},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("调用评审模型失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("评审模型未返回结果")
	}

	if e.usage != nil {
		e.usage.LogChatUsage("EVALUATOR", resp, time.Since(start))
	}

	var result models.EvaluationResult
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return nil, fmt.Errorf("解析评审结果失败: %w, 原始响应: %s", err, resp.Choices[0].Message.Content)
	}

	if job.TranslationV1 == "" {
		result.BetterVersion = "V2"
		result.ScoreV1 = result.ScoreV2
	}

	return &result, nil
}
