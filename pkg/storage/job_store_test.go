package storage

import (
	"testing"
	"time"

	"github.com/z-wentao/polysub/pkg/models"
)

func TestJobStoreCRUD(t *testing.T) {
	store := NewJobStore()
	defer store.Close()

	job := &models.AlignmentJob{
		JobID:          "job-1",
		CueFile:        "input.vtt",
		TargetLanguage: "Portuguese",
		Status:         models.StatusPending,
		CreatedAt:      time.Now(),
	}
	if err := store.Save(job); err != nil {
		t.Fatalf("保存失败: %v", err)
	}

	got, err := store.Get("job-1")
	if err != nil {
		t.Fatalf("获取失败: %v", err)
	}
	if got.CueFile != "input.vtt" {
		t.Errorf("字段错误: %q", got.CueFile)
	}

	if err := store.Update("job-1", func(j *models.AlignmentJob) {
		j.Status = models.StatusCompleted
		j.SegmentCount = 42
	}); err != nil {
		t.Fatalf("更新失败: %v", err)
	}

	got, _ = store.Get("job-1")
	if got.Status != models.StatusCompleted || got.SegmentCount != 42 {
		t.Errorf("更新未生效: %+v", got)
	}

	jobs, err := store.List()
	if err != nil || len(jobs) != 1 {
		t.Fatalf("列表错误: %v, %d", err, len(jobs))
	}

	if err := store.Delete("job-1"); err != nil {
		t.Fatalf("删除失败: %v", err)
	}
	if _, err := store.Get("job-1"); err == nil {
		t.Fatal("删除后仍能获取")
	}
}

func TestJobStoreMissing(t *testing.T) {
	store := NewJobStore()

	if _, err := store.Get("nope"); err == nil {
		t.Error("不存在的任务必须报错")
	}
	if err := store.Update("nope", func(*models.AlignmentJob) {}); err == nil {
		t.Error("更新不存在的任务必须报错")
	}
	if err := store.Delete("nope"); err == nil {
		t.Error("删除不存在的任务必须报错")
	}
}
