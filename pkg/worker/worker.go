package worker

import (
	"context"
	"log"
	"time"

	"github.com/z-wentao/polysub/pkg/evaluator"
	"github.com/z-wentao/polysub/pkg/models"
	"github.com/z-wentao/polysub/pkg/queue"
	"github.com/z-wentao/polysub/pkg/storage"
	"github.com/z-wentao/polysub/pkg/usage"
)

// Worker 评估任务处理器
// 对齐主流程把评估任务丢进队列后立即返回，评估在这里异步完成。
type Worker struct {
	queue     queue.Queue
	store     storage.Store
	evaluator *evaluator.Evaluator
	usage     *usage.Accumulator
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewWorker 创建 Worker
func NewWorker(
	q queue.Queue,
	store storage.Store,
	eval *evaluator.Evaluator,
	acc *usage.Accumulator,
) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:     q,
		store:     store,
		evaluator: eval,
		usage:     acc,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// Start 启动 Worker（在独立的 Goroutine 中运行）
func (w *Worker) Start() {
	go w.run()
}

// Stop 停止 Worker
func (w *Worker) Stop() {
	log.Println("正在停止评估 Worker...")
	w.cancel()
}

// Done 返回 Worker 退出信号
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// run Worker 主循环
func (w *Worker) run() {
	defer close(w.done)
	log.Println("评估 Worker 已启动，等待任务...")

	for {
		select {
		case <-w.ctx.Done():
			log.Println("评估 Worker 已停止")
			return
		default:
		}

		// 从队列获取任务（阻塞）
		job, err := w.queue.Dequeue()
		if err != nil {
			select {
			case <-w.ctx.Done():
				log.Println("评估 Worker 已停止")
				return
			default:
			}
			log.Printf("从队列获取任务失败: %v", err)
			time.Sleep(1 * time.Second)
			continue
		}

		w.processJob(job)
	}
}

// processJob 处理单个评估任务
func (w *Worker) processJob(job *models.EvaluationJob) {
	log.Printf("📊 开始评估任务: %s (语言: %s)", job.JobID, job.TargetLanguage)

	// 单次评估 2 分钟超时
	ctx, cancel := context.WithTimeout(w.ctx, 2*time.Minute)
	defer cancel()

	startTime := time.Now()
	result, err := w.evaluator.Evaluate(ctx, job)

	if err != nil {
		log.Printf("❌ 评估任务 %s 失败: %v", job.JobID, err)
		// 失败消息不重新入队，避免坏任务反复消费
		w.queue.Nack(job, false)
		return
	}

	log.Printf("✓ 评估完成: %s (耗时 %.1f 秒, 更优版本: %s, V1=%.1f V2=%.1f)",
		job.JobID, time.Since(startTime).Seconds(),
		result.BetterVersion, result.ScoreV1, result.ScoreV2)

	if err := w.store.Update(job.JobID, func(j *models.AlignmentJob) {
		j.Evaluation = result
		if w.usage != nil {
			j.TotalCost = w.usage.Total()
		}
	}); err != nil {
		log.Printf("⚠️ 更新任务评估结果失败: %v", err)
	}

	w.queue.Ack(job)
}
