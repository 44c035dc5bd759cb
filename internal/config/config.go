// Package config загружает статическую конфигурацию Conveyor.
//
// Конфигурация читается из YAML-файла (CONVEYOR_CONFIG, по умолчанию
// conveyor.yaml), затем переопределяется переменными окружения.
// Список stages и список ожидаемых artifacts задаются только в файле
// и не меняются после старта процесса.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shaiso/Conveyor/internal/domain"
	"github.com/shaiso/Conveyor/internal/render"
	"github.com/shaiso/Conveyor/internal/scheduler"
)

// Значения по умолчанию.
const (
	DefaultConfigPath     = "conveyor.yaml"
	DefaultPort           = "10000"
	DefaultVerifyAttempts = 3
	DefaultVerifyDelay    = 2 * time.Second
	DefaultStageTimeout   = 30 * time.Minute
	DefaultMaxOutputBytes = 1 << 20
	DefaultStateFile      = "status.txt"
	DefaultResultLink     = "/api/v1/status"
	DefaultArchiveRegion  = "us-east-1"
)

// Политики обработки trigger во время RUNNING.
const (
	OverlapCoalesce = "coalesce"
	OverlapReject   = "reject"
)

// Backend'ы хранения маркера состояния.
const (
	StateBackendFile     = "file"
	StateBackendPostgres = "postgres"
	StateBackendMemory   = "memory"
)

// ErrInvalidConfig — конфигурация не прошла валидацию.
var ErrInvalidConfig = errors.New("invalid config")

// DefaultCleanupExtensions — расширения выходных файлов, удаляемых после запуска.
var DefaultCleanupExtensions = []string{".csv", ".xlsx"}

// Config — полная конфигурация сервиса.
type Config struct {
	// Port — порт HTTP API.
	Port string `yaml:"port"`

	// WorkDir — общая рабочая директория stages.
	WorkDir string `yaml:"workdir"`

	// Stages — упорядоченный список stages.
	Stages []domain.Stage `yaml:"stages"`

	// Artifacts — файлы, наличие которых подтверждает успех stages.
	// Относительные пути считаются от WorkDir.
	Artifacts []string `yaml:"artifacts"`

	// CleanupExtensions — расширения файлов, удаляемых из WorkDir после каждого запуска.
	CleanupExtensions []string `yaml:"cleanup_extensions"`

	Verify VerifyConfig `yaml:"verify"`

	// StageTimeout — таймаут stage по умолчанию.
	StageTimeout time.Duration `yaml:"stage_timeout"`

	// MaxOutputBytes — лимит захвата stdout/stderr на stage.
	MaxOutputBytes int `yaml:"max_output_bytes"`

	// Overlap — что делать с trigger, пока запуск в RUNNING: coalesce или reject.
	Overlap string `yaml:"overlap"`

	// ResultLink — ссылка, возвращаемая в ответе fire-and-forget trigger.
	ResultLink string `yaml:"result_link"`

	State    StateConfig    `yaml:"state"`
	Notify   NotifyConfig   `yaml:"notify"`
	Archive  ArchiveConfig  `yaml:"archive"`
	Schedule ScheduleConfig `yaml:"schedule"`
}

// VerifyConfig — политика проверки artifacts.
type VerifyConfig struct {
	Attempts int           `yaml:"attempts"`
	Delay    time.Duration `yaml:"delay"`
}

// StateConfig — хранение маркера состояния.
type StateConfig struct {
	Backend     string `yaml:"backend"`
	Path        string `yaml:"path"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// NotifyConfig — уведомление downstream после успешного фонового запуска.
type NotifyConfig struct {
	WebhookURL string         `yaml:"webhook_url"`
	WebhookKey string         `yaml:"webhook_key"`
	AMQPURL    string         `yaml:"amqp_url"`
	Payload    map[string]any `yaml:"payload"`
}

// ArchiveConfig — выгрузка artifacts в объектное хранилище перед очисткой.
type ArchiveConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Region    string `yaml:"region"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Enabled возвращает true, если архив настроен.
func (a ArchiveConfig) Enabled() bool {
	return strings.TrimSpace(a.Endpoint) != ""
}

// ScheduleConfig — периодический запуск по cron.
type ScheduleConfig struct {
	Cron string `yaml:"cron"`
}

// FromEnv загружает конфигурацию из файла CONVEYOR_CONFIG.
func FromEnv() (*Config, error) {
	return Load(String("CONVEYOR_CONFIG", DefaultConfigPath))
}

// Load читает YAML-файл, применяет переменные окружения и значения по умолчанию.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	// Относительная workdir считается от директории файла конфигурации
	if !filepath.IsAbs(cfg.WorkDir) {
		cfg.WorkDir = filepath.Join(filepath.Dir(path), cfg.WorkDir)
	}

	return cfg, cfg.finalize()
}

// Parse разбирает YAML и применяет переменные окружения.
// Относительная workdir остаётся относительной к текущей директории.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	return &cfg, nil
}

// applyEnv переопределяет поля значениями из окружения.
func (c *Config) applyEnv() error {
	var err error

	c.Port = String("API_PORT", c.Port)
	c.WorkDir = String("CONVEYOR_WORKDIR", c.WorkDir)
	c.Artifacts = List("CONVEYOR_ARTIFACTS", c.Artifacts)
	c.CleanupExtensions = List("CONVEYOR_CLEANUP_EXTENSIONS", c.CleanupExtensions)
	c.Overlap = String("CONVEYOR_OVERLAP", c.Overlap)
	c.ResultLink = String("RESULT_LINK", c.ResultLink)

	if c.Verify.Attempts, err = Int("VERIFY_ATTEMPTS", c.Verify.Attempts); err != nil {
		return err
	}
	if c.Verify.Delay, err = Duration("VERIFY_DELAY", c.Verify.Delay); err != nil {
		return err
	}
	if c.StageTimeout, err = Duration("STAGE_TIMEOUT", c.StageTimeout); err != nil {
		return err
	}
	if c.MaxOutputBytes, err = Int("MAX_OUTPUT_BYTES", c.MaxOutputBytes); err != nil {
		return err
	}

	c.State.Backend = String("STATE_BACKEND", c.State.Backend)
	c.State.Path = String("STATE_FILE", c.State.Path)
	c.State.PostgresDSN = String("DB_URL", c.State.PostgresDSN)

	c.Notify.WebhookURL = String("NOTIFY_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Notify.WebhookKey = String("NOTIFY_WEBHOOK_KEY", c.Notify.WebhookKey)
	c.Notify.AMQPURL = String("RABBITMQ_URL", c.Notify.AMQPURL)

	c.Archive.Endpoint = String("ARCHIVE_ENDPOINT", c.Archive.Endpoint)
	c.Archive.AccessKey = String("ARCHIVE_ACCESS_KEY", c.Archive.AccessKey)
	c.Archive.SecretKey = String("ARCHIVE_SECRET_KEY", c.Archive.SecretKey)
	c.Archive.Region = String("ARCHIVE_REGION", c.Archive.Region)
	c.Archive.Bucket = String("ARCHIVE_BUCKET", c.Archive.Bucket)
	c.Archive.Prefix = String("ARCHIVE_PREFIX", c.Archive.Prefix)
	if c.Archive.UseSSL, err = Bool("ARCHIVE_USE_SSL", c.Archive.UseSSL); err != nil {
		return err
	}

	c.Schedule.Cron = String("SCHEDULE_CRON", c.Schedule.Cron)

	return nil
}

// applyDefaults заполняет незаданные поля.
func (c *Config) applyDefaults() {
	if c.Port == "" {
		c.Port = DefaultPort
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.CleanupExtensions == nil {
		c.CleanupExtensions = DefaultCleanupExtensions
	}
	if c.Verify.Attempts == 0 {
		c.Verify.Attempts = DefaultVerifyAttempts
	}
	if c.Verify.Delay == 0 {
		c.Verify.Delay = DefaultVerifyDelay
	}
	if c.StageTimeout == 0 {
		c.StageTimeout = DefaultStageTimeout
	}
	if c.MaxOutputBytes == 0 {
		c.MaxOutputBytes = DefaultMaxOutputBytes
	}
	if c.Overlap == "" {
		c.Overlap = OverlapCoalesce
	}
	if c.ResultLink == "" {
		c.ResultLink = DefaultResultLink
	}
	if c.State.Backend == "" {
		c.State.Backend = StateBackendFile
	}
	if c.State.Path == "" {
		c.State.Path = DefaultStateFile
	}
	if c.Archive.Region == "" {
		c.Archive.Region = DefaultArchiveRegion
	}
}

// finalize приводит пути к абсолютным и валидирует конфигурацию.
func (c *Config) finalize() error {
	abs, err := filepath.Abs(c.WorkDir)
	if err != nil {
		return fmt.Errorf("resolve workdir: %w", err)
	}
	c.WorkDir = abs

	return c.Validate()
}

// Validate проверяет корректность конфигурации.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Stages))
	for i, s := range c.Stages {
		if len(s.Command) == 0 || strings.TrimSpace(s.Command[0]) == "" {
			return fmt.Errorf("%w: stage %d (%s) has empty command", ErrInvalidConfig, i+1, s.Name)
		}
		for _, arg := range s.Command {
			if err := render.Check(arg); err != nil {
				return fmt.Errorf("%w: stage %s: %v", ErrInvalidConfig, s.DisplayName(), err)
			}
		}
		if s.Timeout < 0 {
			return fmt.Errorf("%w: stage %s has negative timeout", ErrInvalidConfig, s.DisplayName())
		}
		if s.Name != "" {
			if seen[s.Name] {
				return fmt.Errorf("%w: duplicate stage name %q", ErrInvalidConfig, s.Name)
			}
			seen[s.Name] = true
		}
	}

	for _, a := range c.Artifacts {
		if strings.TrimSpace(a) == "" {
			return fmt.Errorf("%w: empty artifact path", ErrInvalidConfig)
		}
	}

	for _, ext := range c.CleanupExtensions {
		if !strings.HasPrefix(ext, ".") || len(ext) < 2 {
			return fmt.Errorf("%w: cleanup extension %q must start with a dot", ErrInvalidConfig, ext)
		}
	}

	if c.Verify.Attempts < 1 {
		return fmt.Errorf("%w: verify.attempts must be positive", ErrInvalidConfig)
	}
	if c.Verify.Delay < 0 {
		return fmt.Errorf("%w: verify.delay must not be negative", ErrInvalidConfig)
	}
	if c.StageTimeout < 0 {
		return fmt.Errorf("%w: stage_timeout must not be negative", ErrInvalidConfig)
	}
	if c.MaxOutputBytes < 0 {
		return fmt.Errorf("%w: max_output_bytes must not be negative", ErrInvalidConfig)
	}

	switch c.Overlap {
	case OverlapCoalesce, OverlapReject:
	default:
		return fmt.Errorf("%w: unknown overlap policy %q", ErrInvalidConfig, c.Overlap)
	}

	switch c.State.Backend {
	case StateBackendFile, StateBackendMemory:
	case StateBackendPostgres:
		if c.State.PostgresDSN == "" {
			return fmt.Errorf("%w: state.postgres_dsn is required for postgres backend", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown state backend %q", ErrInvalidConfig, c.State.Backend)
	}

	if c.Archive.Enabled() {
		if strings.Contains(c.Archive.Endpoint, "://") {
			return fmt.Errorf("%w: archive endpoint must not include scheme: %q", ErrInvalidConfig, c.Archive.Endpoint)
		}
		if c.Archive.Bucket == "" {
			return fmt.Errorf("%w: archive.bucket is required", ErrInvalidConfig)
		}
	}

	if c.Schedule.Cron != "" {
		if err := scheduler.ValidateCronExpr(c.Schedule.Cron); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}

	return nil
}

// ArtifactPaths возвращает пути artifacts, разрешённые относительно WorkDir.
func (c *Config) ArtifactPaths() []string {
	paths := make([]string, len(c.Artifacts))
	for i, a := range c.Artifacts {
		if filepath.IsAbs(a) {
			paths[i] = a
		} else {
			paths[i] = filepath.Join(c.WorkDir, a)
		}
	}
	return paths
}

// StatePath возвращает путь файла состояния, разрешённый относительно WorkDir.
func (c *Config) StatePath() string {
	if filepath.IsAbs(c.State.Path) {
		return c.State.Path
	}
	return filepath.Join(c.WorkDir, c.State.Path)
}
