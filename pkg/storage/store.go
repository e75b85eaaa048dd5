package storage

import "github.com/z-wentao/polysub/pkg/models"

// Store 对齐任务存储接口
type Store interface {
	// Save 保存任务
	Save(job *models.AlignmentJob) error

	// Get 获取任务
	Get(jobID string) (*models.AlignmentJob, error)

	// Update 更新任务（回调函数模式）
	Update(jobID string, updateFn func(*models.AlignmentJob)) error

	// List 列出所有任务
	List() ([]*models.AlignmentJob, error)

	// Delete 删除任务
	Delete(jobID string) error

	// Close 关闭存储连接
	Close() error
}
