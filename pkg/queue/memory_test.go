package queue

import (
	"testing"

	"github.com/z-wentao/polysub/pkg/models"
)

func TestMemoryQueueRoundTrip(t *testing.T) {
	q := NewMemoryQueue(2)

	in := &models.EvaluationJob{JobID: "job-1", TargetLanguage: "Portuguese"}
	if err := q.Enqueue(in); err != nil {
		t.Fatalf("入队失败: %v", err)
	}

	out, err := q.Dequeue()
	if err != nil {
		t.Fatalf("出队失败: %v", err)
	}
	if out.JobID != "job-1" {
		t.Errorf("任务错乱: %q", out.JobID)
	}

	// 内存队列的 Ack/Nack 是空操作，不报错即可
	if err := q.Ack(out); err != nil {
		t.Errorf("Ack 报错: %v", err)
	}
	if err := q.Nack(out, true); err != nil {
		t.Errorf("Nack 报错: %v", err)
	}
}

func TestMemoryQueueFull(t *testing.T) {
	q := NewMemoryQueue(1)

	if err := q.Enqueue(&models.EvaluationJob{JobID: "a"}); err != nil {
		t.Fatalf("入队失败: %v", err)
	}
	if err := q.Enqueue(&models.EvaluationJob{JobID: "b"}); err == nil {
		t.Fatal("队列满时必须报错而不是阻塞")
	}
}

func TestMemoryQueueClosed(t *testing.T) {
	q := NewMemoryQueue(1)
	q.Enqueue(&models.EvaluationJob{JobID: "a"})
	q.Close()

	// 关闭后仍可取出残留任务
	if _, err := q.Dequeue(); err != nil {
		t.Fatalf("关闭后残留任务应可取出: %v", err)
	}
	if _, err := q.Dequeue(); err == nil {
		t.Fatal("队列耗尽且已关闭时必须报错")
	}
}
