package aligner

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/z-wentao/polysub/pkg/config"
	"github.com/z-wentao/polysub/pkg/models"
)

// TraceRecord 每个 Block 的对齐调试记录（事后排查用）
type TraceRecord struct {
	BlockIndex  int
	Start       float64
	End         float64
	SourceText  string
	MatchedText string
	Event       string // match / repaired / unverified / anchor / fallback
	Cursor      int    // 本次迭代结束后的游标
}

// Tracer 对齐过程观察者
// 注入式接口，替代全局日志文件；实现必须快速返回，不得反馈影响对齐
type Tracer interface {
	Trace(rec TraceRecord)
}

// LogTracer 把调试记录写进标准日志
type LogTracer struct{}

func (LogTracer) Trace(rec TraceRecord) {
	log.Printf("   [TRACE] Block %d (%.1fs -> %.1fs) [%s]\n       源文: %.60s\n       匹配: %.60s",
		rec.BlockIndex, rec.Start, rec.End, rec.Event, rec.SourceText, rec.MatchedText)
}

// Engine 对齐引擎
// 持有唯一的跨迭代状态：译文游标（只进不退）。
type Engine struct {
	reconciler  *Reconciler
	distributor *Distributor
	tracer      Tracer
}

// NewEngine 创建对齐引擎
func NewEngine(oracle Oracle, cfg config.AlignerConfig, tracer Tracer) *Engine {
	if tracer == nil {
		tracer = LogTracer{}
	}
	return &Engine{
		reconciler:  NewReconciler(oracle, cfg),
		distributor: NewDistributor(cfg.Distributor),
		tracer:      tracer,
	}
}

// Run 在完整译文上顺序对齐所有 Block，返回最终字幕段
//
// 循环严格串行：Block i+1 的搜索窗口起点取决于 Block i 提交后的游标，
// 这是固有的顺序依赖，不是实现选择，不能跨 Block 并行。
// 结构性输入错误（空 cue 列表 / 空译文）在任何对齐工作开始前直接失败。
func (e *Engine) Run(ctx context.Context, cues []models.Cue, translated string) ([]models.Segment, error) {
	if len(cues) == 0 {
		return nil, fmt.Errorf("原始字幕为空")
	}
	if strings.TrimSpace(translated) == "" {
		return nil, fmt.Errorf("译文文本为空")
	}

	blocks := Group(cues)
	log.Printf("🚀 对齐引擎启动: %d 个 Block, 译文 %d 字符", len(blocks), runeLen(translated))

	cursor := 0
	fallbacks := 0
	var segments []models.Segment

	for i, block := range blocks {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("任务被取消: %v", err)
		}

		nextText := ""
		if i+1 < len(blocks) {
			nextText = blocks[i+1].Text()
		}

		matched, newCursor, event := e.reconciler.Reconcile(ctx, block, cursor, translated, nextText)
		if newCursor < cursor {
			// 防御不变量：游标只进不退
			newCursor = cursor
		}
		cursor = newCursor

		e.tracer.Trace(TraceRecord{
			BlockIndex:  i,
			Start:       block.Start(),
			End:         block.End(),
			SourceText:  block.Text(),
			MatchedText: matched,
			Event:       event,
			Cursor:      cursor,
		})

		if event == EventFallback {
			fallbacks++
			log.Printf("   ⚠️ [Block %d/%d] 无法匹配，强制推进游标（覆盖缺口将由校验器报告）", i+1, len(blocks))
		}

		segments = append(segments, e.distributor.Distribute(block, matched)...)
	}

	if fallbacks > 0 {
		log.Printf("⚠️ 对齐完成，但有 %d 个 Block 走了终极兜底", fallbacks)
	}
	log.Printf("✓ 对齐完成: %d 个 Block -> %d 个字幕段", len(blocks), len(segments))
	return segments, nil
}
