package aligner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/z-wentao/polysub/pkg/usage"
)

// MatchRequest 匹配请求
type MatchRequest struct {
	SourceText     string // 当前 Block 的源语言文本
	WindowText     string // 译文搜索窗口（只在这里面找）
	ContextText    string // 游标前的译文片段（已消费，只读上下文）
	NextSourceText string // 下一个 Block 的源文本（负向约束：不要把它的译文吞进来）
}

// Oracle 外部匹配器的窄接口
// 这是对齐流程里唯一的非确定性依赖，抽象出来以便用桩实现做单元测试；
// 它的答案不可信，调用方必须自行校验。
type Oracle interface {
	MatchSubstring(ctx context.Context, req MatchRequest) (string, error)
}

const matcherSystemPrompt = `You are a Translation Matcher.
INPUT: A source-language text segment and a target-language text window.
TASK: Identify the target-language substring that corresponds to the source input.

CRITICAL RULES:
1. CONTEXT AWARENESS: The target window is a "sliding window". It may start in the middle of a word or sentence. IGNORE any broken fragments at the very beginning of the window. Look for the first COMPLETE sentence that matches the meaning.
2. FLEXIBILITY: The translation may be non-literal, inverted, or missing small emphasis words. Match based on MEANING.
3. EXACT EXTRACT: Once you locate the matching segment, extract the substring EXACTLY as it appears in the window. Do not correct typos, punctuation, or grammar. Copy it byte-for-byte.
4. BOUNDARIES: Do not include text that belongs to the NEXT source segment. If the next segment is provided, its translation must stay out of your answer, even when the window repeats a phrase.
5. JSON OUTPUT: { "matched_substring": "..." }`

// OpenAIOracle 基于 OpenAI Chat Completion 的匹配器实现
type OpenAIOracle struct {
	client *openai.Client
	model  string
	usage  *usage.Accumulator
}

// NewOpenAIOracle 创建匹配器
func NewOpenAIOracle(apiKey, model string, acc *usage.Accumulator) *OpenAIOracle {
	return &OpenAIOracle{
		client: openai.NewClient(apiKey),
		model:  model,
		usage:  acc,
	}
}

// MatchSubstring 调用模型在搜索窗口内定位译文子串
func (o *OpenAIOracle) MatchSubstring(ctx context.Context, req MatchRequest) (string, error) {
	start := time.Now()

	var prompt strings.Builder
	prompt.WriteString("--- SOURCE SEGMENT ---\n")
	prompt.WriteString(req.SourceText)
	if req.ContextText != "" {
		prompt.WriteString("\n\n--- ALREADY MATCHED (context before the window, do NOT reuse) ---\n")
		prompt.WriteString(req.ContextText)
	}
	prompt.WriteString("\n\n--- TARGET WINDOW (search here) ---\n")
	prompt.WriteString(req.WindowText)
	if req.NextSourceText != "" {
		prompt.WriteString("\n\n--- NEXT SOURCE SEGMENT (its translation must NOT be included) ---\n")
		prompt.WriteString(req.NextSourceText)
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: matcherSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: prompt.String()},
		},
		Temperature: 0.1, // 降低温度，抽取任务要稳定
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return "", fmt.Errorf("调用匹配器失败: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("匹配器未返回结果")
	}

	if o.usage != nil {
		o.usage.LogChatUsage("MATCHER", resp, time.Since(start))
	}

	var result struct {
		MatchedSubstring string `json:"matched_substring"`
	}
	if err := json.Unmarshal([]byte(resp.Choices[0].Message.Content), &result); err != nil {
		return "", fmt.Errorf("解析匹配器响应失败: %w, 原始响应: %s", err, resp.Choices[0].Message.Content)
	}

	return result.MatchedSubstring, nil
}

// MatchWithRetry 带重试的匹配：传输失败和空结果都会重试（指数退避）
// 重试耗尽不是致命错误，返回最后一个错误，由调用方走恢复路径
func MatchWithRetry(ctx context.Context, o Oracle, req MatchRequest, maxRetries int) (string, error) {
	if maxRetries <= 0 {
		maxRetries = 1
	}

	var lastErr error
	for i := 0; i < maxRetries; i++ {
		matched, err := o.MatchSubstring(ctx, req)
		if err == nil && strings.TrimSpace(matched) != "" {
			return matched, nil
		}

		if err != nil {
			lastErr = err
		} else {
			lastErr = fmt.Errorf("匹配器返回空结果")
		}

		if ctx.Err() != nil {
			return "", fmt.Errorf("任务被取消: %v", ctx.Err())
		}

		if i < maxRetries-1 {
			waitTime := time.Duration(1<<uint(i)) * time.Second // 1s, 2s, 4s...
			select {
			case <-time.After(waitTime):
			case <-ctx.Done():
				return "", fmt.Errorf("任务被取消: %v", ctx.Err())
			}
		}
	}

	return "", fmt.Errorf("重试 %d 次后仍然失败: %v", maxRetries, lastErr)
}
