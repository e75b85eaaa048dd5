package storage

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/z-wentao/polysub/pkg/models"
)

// PostgresJobStore PostgreSQL 任务存储（冷数据层，持久化）
type PostgresJobStore struct {
	db *sql.DB
}

// NewPostgresJobStore 创建 PostgreSQL 任务存储
func NewPostgresJobStore(connStr string) (*PostgresJobStore, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("打开数据库连接失败: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("连接数据库失败: %w", err)
	}

	// 设置连接池
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	return &PostgresJobStore{db: db}, nil
}

// Save 保存任务（UPSERT）
func (s *PostgresJobStore) Save(job *models.AlignmentJob) error {
	evaluationJSON, err := json.Marshal(job.Evaluation)
	if err != nil {
		return fmt.Errorf("序列化 evaluation 失败: %w", err)
	}

	query := `
	INSERT INTO alignment_jobs (
	job_id, cue_file, target_language, status,
	segment_count, output_path, valid, error_count, warning_count,
	evaluation, total_cost, error, created_at, completed_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (job_id)
	DO UPDATE SET
	status = EXCLUDED.status,
	segment_count = EXCLUDED.segment_count,
	output_path = EXCLUDED.output_path,
	valid = EXCLUDED.valid,
	error_count = EXCLUDED.error_count,
	warning_count = EXCLUDED.warning_count,
	evaluation = EXCLUDED.evaluation,
	total_cost = EXCLUDED.total_cost,
	error = EXCLUDED.error,
	completed_at = EXCLUDED.completed_at
	`

	_, err = s.db.Exec(query,
		job.JobID,
		job.CueFile,
		job.TargetLanguage,
		job.Status,
		job.SegmentCount,
		job.OutputPath,
		job.Valid,
		job.ErrorCount,
		job.WarningCount,
		evaluationJSON,
		job.TotalCost,
		job.Error,
		job.CreatedAt,
		job.CompletedAt,
	)

	if err != nil {
		return fmt.Errorf("保存到数据库失败: %w", err)
	}

	return nil
}

// Get 获取任务
func (s *PostgresJobStore) Get(jobID string) (*models.AlignmentJob, error) {
	query := `
	SELECT job_id, cue_file, target_language, status,
	segment_count, output_path, valid, error_count, warning_count,
	evaluation, total_cost, error, created_at, completed_at
	FROM alignment_jobs
	WHERE job_id = $1
	`

	job, err := scanAlignmentJob(s.db.QueryRow(query, jobID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("任务不存在: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	return job, nil
}

// Update 更新任务
func (s *PostgresJobStore) Update(jobID string, updateFn func(*models.AlignmentJob)) error {
	// 读-改-写
	job, err := s.Get(jobID)
	if err != nil {
		return err
	}

	updateFn(job)
	return s.Save(job)
}

// List 列出所有任务（按创建时间倒序）
func (s *PostgresJobStore) List() ([]*models.AlignmentJob, error) {
	query := `
	SELECT job_id, cue_file, target_language, status,
	segment_count, output_path, valid, error_count, warning_count,
	evaluation, total_cost, error, created_at, completed_at
	FROM alignment_jobs
	ORDER BY created_at DESC
	LIMIT 100
	`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("查询数据库失败: %w", err)
	}
	defer rows.Close()

	jobs := make([]*models.AlignmentJob, 0)
	for rows.Next() {
		job, err := scanAlignmentJob(rows)
		if err != nil {
			continue
		}
		jobs = append(jobs, job)
	}

	return jobs, nil
}

// Delete 删除任务
func (s *PostgresJobStore) Delete(jobID string) error {
	query := `DELETE FROM alignment_jobs WHERE job_id = $1`

	result, err := s.db.Exec(query, jobID)
	if err != nil {
		return fmt.Errorf("删除任务失败: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("获取删除结果失败: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("任务不存在: %s", jobID)
	}

	return nil
}

// Close 关闭数据库连接
func (s *PostgresJobStore) Close() error {
	return s.db.Close()
}

// rowScanner 兼容 *sql.Row 和 *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlignmentJob(row rowScanner) (*models.AlignmentJob, error) {
	var job models.AlignmentJob
	var evaluationJSON []byte
	var outputPath, errorMsg, targetLanguage sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&job.JobID,
		&job.CueFile,
		&targetLanguage,
		&job.Status,
		&job.SegmentCount,
		&outputPath,
		&job.Valid,
		&job.ErrorCount,
		&job.WarningCount,
		&evaluationJSON,
		&job.TotalCost,
		&errorMsg,
		&job.CreatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	// 处理 NULL 值
	if targetLanguage.Valid {
		job.TargetLanguage = targetLanguage.String
	}
	if outputPath.Valid {
		job.OutputPath = outputPath.String
	}
	if errorMsg.Valid {
		job.Error = errorMsg.String
	}
	if completedAt.Valid {
		job.CompletedAt = completedAt.Time
	}

	// 反序列化 JSON 字段
	if len(evaluationJSON) > 0 && string(evaluationJSON) != "null" {
		var eval models.EvaluationResult
		if err := json.Unmarshal(evaluationJSON, &eval); err == nil {
			job.Evaluation = &eval
		}
	}

	return &job, nil
}
