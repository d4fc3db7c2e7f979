// Package config provides configuration loading, validation, and defaults
// for the screening bot. Values come from defaults, an optional config.yaml,
// and BOT_* environment variables, in increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config defines the application configuration for all components: logging,
// the LINE channel, the Gemini evaluator, the question database, the HTTP
// server, the session store, and scheduled tasks.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Line      LineConfig      `mapstructure:"line"`
	Gemini    GeminiConfig    `mapstructure:"gemini"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Session   SessionConfig   `mapstructure:"session"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig controls log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// LineConfig holds the LINE Messaging API channel credentials.
type LineConfig struct {
	ChannelSecret string `mapstructure:"channel_secret" validate:"required"`
	ChannelToken  string `mapstructure:"channel_token"  validate:"required"`
	APIBaseURL    string `mapstructure:"api_base_url"   validate:"required,url"`
}

// GeminiConfig holds settings for the Gemini evaluator client.
type GeminiConfig struct {
	APIKey            string        `mapstructure:"api_key" validate:"required"`
	ModelName         string        `mapstructure:"model_name" validate:"required"`
	Temperature       float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries        int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int           `mapstructure:"retry_delay_seconds" validate:"min=0"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout" validate:"min=1s,max=10m"`
}

// DatabaseConfig holds the question database settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

// ServerConfig holds the webhook HTTP server settings.
type ServerConfig struct {
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`
}

// SessionConfig controls the in-memory session store.
type SessionConfig struct {
	IdleTTL time.Duration `mapstructure:"idle_ttl" validate:"min=1m"`
}

// SchedulerConfig maps task names to their schedules.
type SchedulerConfig struct {
	Tasks map[string]TaskConfig `mapstructure:"tasks"`
}

// TaskConfig enables a named scheduled task with a cron expression.
type TaskConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// MessagesConfig holds every user-facing reply text. Defaults are in
// Traditional Chinese; deployments can override any of them.
type MessagesConfig struct {
	Welcome          string `mapstructure:"welcome" validate:"required"`
	Menu             string `mapstructure:"menu" validate:"required"`
	BirthdatePrompt  string `mapstructure:"birthdate_prompt" validate:"required"`
	InvalidBirthdate string `mapstructure:"invalid_birthdate" validate:"required"`
	NoQuestions      string `mapstructure:"no_questions" validate:"required"`
	Tips             string `mapstructure:"tips" validate:"required"`
	Treatment        string `mapstructure:"treatment" validate:"required"`
	GeneralError     string `mapstructure:"general_error" validate:"required"`
}

// LoadConfig loads configuration from defaults, the given YAML file (which
// may be absent), and BOT_* environment variables, then validates it.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("BOT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// A missing config file is fine; defaults and env vars still apply.
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %q: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("line.api_base_url", "https://api.line.me")

	v.SetDefault("gemini.model_name", "gemini-2.0-flash")
	v.SetDefault("gemini.temperature", 0.2)
	v.SetDefault("gemini.max_retries", 2)
	v.SetDefault("gemini.retry_delay_seconds", 2)
	v.SetDefault("gemini.request_timeout", 30*time.Second)

	v.SetDefault("database.path", "questions.db")

	v.SetDefault("server.listen_addr", ":5000")

	v.SetDefault("session.idle_ttl", 24*time.Hour)

	v.SetDefault("scheduler.tasks", map[string]TaskConfig{
		"sql_maintenance": {Enabled: true, Schedule: "0 0 4 * * *"},
		"session_cleanup": {Enabled: true, Schedule: "0 30 * * * *"},
	})

	v.SetDefault("messages.welcome", defaultWelcome)
	v.SetDefault("messages.menu", defaultMenu)
	v.SetDefault("messages.birthdate_prompt", defaultBirthdatePrompt)
	v.SetDefault("messages.invalid_birthdate", defaultInvalidBirthdate)
	v.SetDefault("messages.no_questions", defaultNoQuestions)
	v.SetDefault("messages.tips", defaultTips)
	v.SetDefault("messages.treatment", defaultTreatment)
	v.SetDefault("messages.general_error", defaultGeneralError)
}

const (
	defaultWelcome = `🎉 歡迎來到 **兒童語言篩檢 BOT**！
請選擇您需要的功能，輸入對應的關鍵字開始：
🔹 **篩檢** → 進行兒童語言發展篩檢
🔹 **提升** → 獲取語言發展建議
🔹 **我想治療** → 查找附近語言治療服務

⚠️ 若要進行篩檢，請輸入「篩檢」開始測驗。
⚠️ 若輸入其他內容，BOT 會重複此訊息。`

	defaultMenu = `✅ 已返回主選單。

請選擇功能：
- 「篩檢」開始語言篩檢
- 「提升」獲取語言發展建議
- 「我想治療」獲取語言治療資源`

	defaultBirthdatePrompt = `請輸入孩子的出生年月日，格式為 YYYY-MM-DD，例如：2022-03-15。

輸入「返回」可回到主選單。`

	defaultInvalidBirthdate = `⚠️ 無法辨識日期，請以 YYYY-MM-DD 格式輸入孩子的出生年月日，例如：2022-03-15。`

	defaultNoQuestions = `⚠️ 目前沒有適合此月齡的篩檢題目，請稍後再試。已返回主選單。`

	defaultTips = `💡 語言發展建議：
- 每天與孩子面對面說話、唱歌與共讀
- 描述孩子正在注意的事物，等待孩子回應
- 減少螢幕時間，增加互動遊戲

輸入「返回」回到主選單。`

	defaultTreatment = `🏥 語言治療資源：
各縣市醫院復健科與語言治療所均提供兒童語言評估，
可洽各地早期療育通報轉介中心安排評估。

輸入「返回」回到主選單。`

	defaultGeneralError = `❌ 系統忙碌中，請稍後再試一次。`
)
