package queue

import "github.com/z-wentao/polysub/pkg/models"

// Queue 评估任务队列接口
// 对齐主流程产出字幕段后把评估任务扔进队列就返回；
// 接口抽象方便在内存实现和 RabbitMQ 之间切换。
type Queue interface {
	// Enqueue 将评估任务加入队列
	Enqueue(job *models.EvaluationJob) error

	// Dequeue 从队列取出任务（阻塞）
	Dequeue() (*models.EvaluationJob, error)

	// Ack 确认消息（任务处理成功）
	Ack(job *models.EvaluationJob) error

	// Nack 拒绝消息（任务处理失败）
	// requeue: 是否重新入队
	Nack(job *models.EvaluationJob, requeue bool) error

	// Close 关闭队列
	Close() error
}
