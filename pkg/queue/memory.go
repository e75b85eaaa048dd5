package queue

import (
	"fmt"

	"github.com/z-wentao/polysub/pkg/models"
)

// MemoryQueue 基于 Channel 的内存队列实现（单进程运行时使用）
type MemoryQueue struct {
	queue chan *models.EvaluationJob
}

// NewMemoryQueue 创建内存队列
func NewMemoryQueue(bufferSize int) *MemoryQueue {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	return &MemoryQueue{
		queue: make(chan *models.EvaluationJob, bufferSize),
	}
}

// Enqueue 将任务加入队列
func (mq *MemoryQueue) Enqueue(job *models.EvaluationJob) error {
	select {
	case mq.queue <- job:
		return nil
	default:
		return fmt.Errorf("队列已满")
	}
}

// Dequeue 从队列取出任务（阻塞等待）
func (mq *MemoryQueue) Dequeue() (*models.EvaluationJob, error) {
	job, ok := <-mq.queue
	if !ok {
		return nil, fmt.Errorf("队列已关闭")
	}
	return job, nil
}

// Ack 内存队列取出即消费，无需确认
func (mq *MemoryQueue) Ack(job *models.EvaluationJob) error {
	return nil
}

// Nack 内存队列不支持重新入队
func (mq *MemoryQueue) Nack(job *models.EvaluationJob, requeue bool) error {
	return nil
}

// Close 关闭队列
func (mq *MemoryQueue) Close() error {
	close(mq.queue)
	return nil
}
