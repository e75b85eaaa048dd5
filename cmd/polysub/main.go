package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/z-wentao/polysub/pkg/aligner"
	"github.com/z-wentao/polysub/pkg/config"
	"github.com/z-wentao/polysub/pkg/evaluator"
	"github.com/z-wentao/polysub/pkg/models"
	"github.com/z-wentao/polysub/pkg/queue"
	"github.com/z-wentao/polysub/pkg/storage"
	"github.com/z-wentao/polysub/pkg/subtitle"
	"github.com/z-wentao/polysub/pkg/usage"
	"github.com/z-wentao/polysub/pkg/worker"
)

// App 应用上下文（依赖注入）
type App struct {
	config *config.Config
	queue  queue.Queue
	store  storage.Store
	worker *worker.Worker
	usage  *usage.Accumulator
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "配置文件路径")
	cuesPath := flag.String("cues", "", "原始字幕文件 (VTT/SRT)")
	translationPath := flag.String("translation", "", "完整译文文本文件")
	translationV1Path := flag.String("translation-v1", "", "初译版本文本文件（可选，用于质量评估对比）")
	outPath := flag.String("out", "", "输出 VTT 文件路径")
	srtPath := flag.String("srt", "", "额外输出 SRT 文件路径（可选）")
	language := flag.String("language", "", "目标语言（如 Portuguese）")
	flag.Parse()

	if *cuesPath == "" || *translationPath == "" || *outPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	// 1. 加载配置
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("❌ 加载配置失败: %v", err)
	}
	log.Println("✓ 配置加载成功")

	// 2. 初始化组件
	app := &App{
		config: cfg,
		usage:  usage.NewAccumulator(),
	}

	// 存储（根据配置选择类型）
	app.store, err = setupStore(cfg)
	if err != nil {
		log.Fatalf("❌ 初始化存储失败: %v", err)
	}

	// 队列（根据配置选择类型）
	app.queue, err = setupQueue(cfg)
	if err != nil {
		log.Fatalf("❌ 初始化队列失败: %v", err)
	}

	// 3. 启动评估 Worker
	eval := evaluator.New(cfg.OpenAI.APIKey, cfg.OpenAI.EvaluatorModel, app.usage)
	app.worker = worker.NewWorker(app.queue, app.store, eval, app.usage)
	app.worker.Start()

	// 4. 结构性输入错误在对齐开始前直接失败
	cues, err := subtitle.ParseFile(*cuesPath)
	if err != nil {
		log.Fatalf("❌ 解析原始字幕失败: %v", err)
	}
	log.Printf("✓ 解析原始字幕: %d 个 cue", len(cues))

	translated, err := readText(*translationPath)
	if err != nil {
		log.Fatalf("❌ 读取译文失败: %v", err)
	}

	translationV1 := ""
	if *translationV1Path != "" {
		translationV1, err = readText(*translationV1Path)
		if err != nil {
			log.Fatalf("❌ 读取初译版本失败: %v", err)
		}
	}

	// 5. 创建任务记录
	job := &models.AlignmentJob{
		JobID:          uuid.New().String(),
		CueFile:        filepath.Base(*cuesPath),
		TargetLanguage: *language,
		Status:         models.StatusProcessing,
		CreatedAt:      time.Now(),
	}
	if err := app.store.Save(job); err != nil {
		log.Fatalf("❌ 保存任务失败: %v", err)
	}
	log.Printf("📝 任务创建: %s", job.JobID)

	// 6. 运行对齐（Ctrl+C 可取消）
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	oracle := aligner.NewOpenAIOracle(cfg.OpenAI.APIKey, cfg.OpenAI.MatcherModel, app.usage)
	engine := aligner.NewEngine(oracle, cfg.Aligner, nil)

	segments, err := engine.Run(ctx, cues, translated)
	if err != nil {
		app.store.Update(job.JobID, func(j *models.AlignmentJob) {
			j.Status = models.StatusFailed
			j.Error = err.Error()
			j.CompletedAt = time.Now()
		})
		app.shutdown()
		log.Fatalf("❌ 对齐失败: %v", err)
	}

	// 7. 输出字幕轨道
	if err := subtitle.GenerateVTT(segments, *outPath); err != nil {
		app.shutdown()
		log.Fatalf("❌ 生成 VTT 失败: %v", err)
	}
	log.Printf("✓ 已生成: %s", *outPath)

	if *srtPath != "" {
		if err := subtitle.GenerateSRT(segments, *srtPath); err != nil {
			app.shutdown()
			log.Fatalf("❌ 生成 SRT 失败: %v", err)
		}
		log.Printf("✓ 已生成: %s", *srtPath)
	}

	// 8. 校验（失败只报告，不影响退出码：轨道已经产出）
	report := aligner.Validate(cues, segments)
	printReport(report)

	app.store.Update(job.JobID, func(j *models.AlignmentJob) {
		j.Status = models.StatusCompleted
		j.SegmentCount = len(segments)
		j.OutputPath = *outPath
		j.Valid = report.Valid
		j.ErrorCount = len(report.Errors)
		j.WarningCount = len(report.Warnings)
		j.TotalCost = app.usage.Total()
		j.CompletedAt = time.Now()
	})

	// 9. 派发后台质量评估
	originalText := collectOriginalText(cues)
	if err := app.queue.Enqueue(&models.EvaluationJob{
		JobID:          job.JobID,
		TargetLanguage: *language,
		OriginalText:   originalText,
		TranslationV1:  translationV1,
		TranslationV2:  translated,
	}); err != nil {
		log.Printf("⚠️ 派发评估任务失败: %v", err)
	} else {
		waitForEvaluation(app.store, job.JobID, 3*time.Minute)
	}

	log.Printf("💰 本次运行: %d 次 API 调用, 总成本 $%.5f", app.usage.Calls(), app.usage.Total())

	app.shutdown()
}

// setupStore 根据配置创建任务存储
func setupStore(cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Type {
	case "memory":
		log.Println("✓ 使用内存存储")
		return storage.NewJobStore(), nil
	case "redis":
		ttl := time.Duration(cfg.Storage.Redis.TTLHours) * time.Hour
		store, err := storage.NewRedisJobStore(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, ttl)
		if err != nil {
			return nil, err
		}
		log.Println("✓ 使用 Redis 存储")
		return store, nil
	case "postgres":
		store, err := storage.NewPostgresJobStore(cfg.Storage.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		log.Println("✓ 使用 PostgreSQL 存储")
		return store, nil
	case "hybrid":
		ttl := time.Duration(cfg.Storage.Redis.TTLHours) * time.Hour
		redisStore, err := storage.NewRedisJobStore(cfg.Storage.Redis.Addr, cfg.Storage.Redis.Password, cfg.Storage.Redis.DB, ttl)
		if err != nil {
			return nil, err
		}
		pgStore, err := storage.NewPostgresJobStore(cfg.Storage.Postgres.DSN)
		if err != nil {
			redisStore.Close()
			return nil, err
		}
		return storage.NewHybridJobStore(redisStore, pgStore), nil
	default:
		log.Printf("⚠️ 不支持的存储类型: %s，使用内存存储", cfg.Storage.Type)
		return storage.NewJobStore(), nil
	}
}

// setupQueue 根据配置创建评估队列
func setupQueue(cfg *config.Config) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "memory":
		log.Println("✓ 使用内存队列")
		return queue.NewMemoryQueue(cfg.Queue.BufferSize), nil
	case "rabbitmq":
		return queue.NewRabbitMQQueue(cfg.Queue.RabbitMQ.URL, cfg.Queue.RabbitMQ.QueueName, cfg.Queue.RabbitMQ.PrefetchCount)
	default:
		log.Printf("⚠️ 不支持的队列类型: %s，使用内存队列", cfg.Queue.Type)
		return queue.NewMemoryQueue(cfg.Queue.BufferSize), nil
	}
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// collectOriginalText 拼接原始字幕全文（评估用）
func collectOriginalText(cues []models.Cue) string {
	var sb strings.Builder
	for i, cue := range cues {
		if i > 0 {
			sb.WriteString(" ")
		}
		sb.WriteString(cue.Text)
	}
	return sb.String()
}

// printReport 打印校验报告
func printReport(report models.ValidationReport) {
	if report.Valid {
		log.Printf("✅ 校验通过: %d 个段, 最大行数 %d", report.Stats.SegmentCount, report.Stats.MaxLines)
	} else {
		log.Printf("❌ 校验未通过: %d 个错误", len(report.Errors))
	}
	for _, e := range report.Errors {
		log.Printf("   ❌ %s", e)
	}
	for _, w := range report.Warnings {
		log.Printf("   ⚠️ %s", w)
	}
	log.Printf("   时长: 原始 %.1fs / 生成 %.1fs", report.Stats.OrigDuration, report.Stats.TargetDuration)
}

// waitForEvaluation 轮询存储等待后台评估结果（超时放弃，不阻塞退出）
func waitForEvaluation(store storage.Store, jobID string, timeout time.Duration) {
	log.Println("⏳ 等待后台质量评估...")

	deadline := time.After(timeout)
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-deadline:
			log.Println("⚠️ 等待评估超时，结果稍后可从任务记录中查询")
			return
		case <-ticker.C:
			job, err := store.Get(jobID)
			if err != nil {
				continue
			}
			if job.Evaluation != nil {
				log.Printf("📊 质量评估: 更优版本 %s (V1=%.1f, V2=%.1f)",
					job.Evaluation.BetterVersion, job.Evaluation.ScoreV1, job.Evaluation.ScoreV2)
				log.Printf("   理由: %.200s", job.Evaluation.Reasoning)
				return
			}
		}
	}
}

func (app *App) shutdown() {
	app.worker.Stop()
	app.queue.Close()

	// 给 Worker 一点时间退出
	select {
	case <-app.worker.Done():
	case <-time.After(3 * time.Second):
	}

	app.store.Close()
}
