package usage

import (
	"log"
	"strings"
	"sync"
	"time"

	"github.com/sashabaranov/go-openai"
)

type modelPrice struct {
	Input  float64 // 美元 / 百万输入 token
	Output float64 // 美元 / 百万输出 token
}

// 价格表（按需调整）
var pricing = map[string]modelPrice{
	"gpt-4o-mini": {Input: 0.15, Output: 0.60},
	"gpt-4o":      {Input: 2.50, Output: 10.00},
	"gpt-4.1":     {Input: 2.00, Output: 8.00},
}

const defaultPriceKey = "gpt-4o-mini"

// Accumulator 单次运行的成本累加器
// 按运行注入，替代进程级全局计数器；评估任务并发写入，需要加锁
type Accumulator struct {
	mu    sync.Mutex
	total float64
	calls int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{}
}

// LogChatUsage 记录一次 Chat Completion 的 token 用量并累计成本
func (a *Accumulator) LogChatUsage(stage string, resp openai.ChatCompletionResponse, elapsed time.Duration) {
	inTokens := resp.Usage.PromptTokens
	outTokens := resp.Usage.CompletionTokens

	// 响应里的模型名可能带日期后缀（如 gpt-4o-mini-2024-07-18），按包含关系匹配。
	// 取最长的命中键："gpt-4o-mini-…" 同时包含 "gpt-4o" 和 "gpt-4o-mini"，
	// 不能依赖 map 的遍历顺序
	price := pricing[defaultPriceKey]
	bestLen := 0
	for key, p := range pricing {
		if strings.Contains(resp.Model, key) && len(key) > bestLen {
			price = p
			bestLen = len(key)
		}
	}

	cost := float64(inTokens)*price.Input/1_000_000 + float64(outTokens)*price.Output/1_000_000

	a.mu.Lock()
	a.total += cost
	a.calls++
	a.mu.Unlock()

	log.Printf("   📊 [%s] %din/%dout | 耗时: %.2fs | 成本: $%.5f",
		stage, inTokens, outTokens, elapsed.Seconds(), cost)
}

// Total 返回累计成本（美元）
func (a *Accumulator) Total() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.total
}

// Calls 返回累计调用次数
func (a *Accumulator) Calls() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}
