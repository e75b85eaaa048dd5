package config

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
)

// Config 应用配置
type Config struct {
	OpenAI  OpenAIConfig  `yaml:"openai"`
	Aligner AlignerConfig `yaml:"aligner"`
	Queue   QueueConfig   `yaml:"queue"`
	Storage StorageConfig `yaml:"storage"`
}

// OpenAIConfig OpenAI 配置
type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	MatcherModel   string `yaml:"matcher_model"`   // 匹配器模型（调用频繁，选便宜的）
	EvaluatorModel string `yaml:"evaluator_model"` // 质量评审模型
}

// AlignerConfig 对齐引擎配置
type AlignerConfig struct {
	WindowSize  int `yaml:"window_size"`  // 搜索窗口大小（字符数）
	ContextSize int `yaml:"context_size"` // 游标前的上下文预览大小
	MaxRetries  int `yaml:"max_retries"`  // 匹配器空结果/失败重试次数

	// 终极兜底推进比例：无法匹配时按源文本长度 * 比例推进游标
	// 注意：对字符密度高的目标语言（如中文、日文）1:1 会明显过冲，按需调小
	FallbackRatio  float64 `yaml:"fallback_ratio"`
	MaxLengthRatio float64 `yaml:"max_length_ratio"` // 匹配/源长度比超过该值触发截断检查
	ExpectedRatio  float64 `yaml:"expected_ratio"`   // 经验上的合理长度比

	Distributor DistributorConfig `yaml:"distributor"`
}

// DistributorConfig 字幕段分发配置
type DistributorConfig struct {
	MaxChunkLength int     `yaml:"max_chunk_length"` // 单段文本长度预算
	MaxLineLength  int     `yaml:"max_line_length"`  // 单行长度上限（换行阈值）
	MinDuration    float64 `yaml:"min_duration"`     // 低于该时长的段视为微段（秒）
	MinLength      int     `yaml:"min_length"`       // 低于该长度的段视为微段
	WidowDuration  float64 `yaml:"widow_duration"`   // 孤尾段时长阈值（秒）
	WidowLength    int     `yaml:"widow_length"`     // 孤尾段长度阈值
}

// QueueConfig 队列配置
type QueueConfig struct {
	Type       string         `yaml:"type"` // memory / rabbitmq
	BufferSize int            `yaml:"buffer_size"`
	RabbitMQ   RabbitMQConfig `yaml:"rabbitmq"`
}

// RabbitMQConfig RabbitMQ 配置
type RabbitMQConfig struct {
	URL           string `yaml:"url"`
	QueueName     string `yaml:"queue_name"`
	PrefetchCount int    `yaml:"prefetch_count"` // QoS：每个消费者未确认消息上限
}

// StorageConfig 任务存储配置
type StorageConfig struct {
	Type     string         `yaml:"type"` // memory / redis / postgres / hybrid
	Redis    RedisConfig    `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TTLHours int    `yaml:"ttl_hours"` // 任务记录过期时间
}

// PostgresConfig PostgreSQL 配置
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %v", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %v", err)
	}

	return &config, nil
}

// Validate 验证配置并填充默认值
func (c *Config) Validate() error {
	if c.OpenAI.APIKey == "" || c.OpenAI.APIKey == "your-openai-api-key-here" {
		return fmt.Errorf("请在配置文件中设置有效的 OpenAI API Key")
	}

	if c.OpenAI.MatcherModel == "" {
		c.OpenAI.MatcherModel = "gpt-4o-mini"
	}
	if c.OpenAI.EvaluatorModel == "" {
		c.OpenAI.EvaluatorModel = "gpt-4o-mini"
	}

	c.Aligner.applyDefaults()

	if c.Queue.Type == "" {
		c.Queue.Type = "memory"
	}
	if c.Queue.BufferSize <= 0 {
		c.Queue.BufferSize = 100
	}
	if c.Queue.RabbitMQ.QueueName == "" {
		c.Queue.RabbitMQ.QueueName = "polysub.evaluations"
	}
	if c.Queue.RabbitMQ.PrefetchCount <= 0 {
		c.Queue.RabbitMQ.PrefetchCount = 1
	}

	if c.Storage.Type == "" {
		c.Storage.Type = "memory"
	}
	if c.Storage.Redis.TTLHours <= 0 {
		c.Storage.Redis.TTLHours = 72
	}

	return nil
}

func (a *AlignerConfig) applyDefaults() {
	if a.WindowSize <= 0 {
		a.WindowSize = 500
	}
	if a.ContextSize <= 0 {
		a.ContextSize = 100
	}
	if a.MaxRetries <= 0 {
		a.MaxRetries = 3
	}
	if a.FallbackRatio <= 0 {
		a.FallbackRatio = 1.0
	}
	if a.MaxLengthRatio <= 0 {
		a.MaxLengthRatio = 1.5
	}
	if a.ExpectedRatio <= 0 {
		a.ExpectedRatio = 1.3
	}
	a.Distributor.applyDefaults()
}

func (d *DistributorConfig) applyDefaults() {
	if d.MaxChunkLength <= 0 {
		d.MaxChunkLength = 80
	}
	if d.MaxLineLength <= 0 {
		d.MaxLineLength = 42
	}
	if d.MinDuration <= 0 {
		d.MinDuration = 1.5
	}
	if d.MinLength <= 0 {
		d.MinLength = 15
	}
	if d.WidowDuration <= 0 {
		d.WidowDuration = 1.0
	}
	if d.WidowLength <= 0 {
		d.WidowLength = 10
	}
}

// DefaultAligner 返回带默认值的对齐配置（测试与内嵌场景使用）
func DefaultAligner() AlignerConfig {
	var a AlignerConfig
	a.applyDefaults()
	return a
}
