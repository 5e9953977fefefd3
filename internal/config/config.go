package config

import (
	"fmt"
	"os"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// 配置结构体（与规划一致，保留必要字段，便于后续扩展）
type Config struct {
	App struct {
		Env      string `toml:"env"`
		LogLevel string `toml:"log_level"`
		HTTPAddr string `toml:"http_addr"`
		LLMLog   string `toml:"llm_log"` // 可选：LLM 请求体日志文件
	} `toml:"app"`

	AI AIConfig `toml:"ai"`

	Prompt struct {
		Dir            string   `toml:"dir"`
		BaseFile       string   `toml:"base_file"`       // 基础指令文档
		RuleFiles      []string `toml:"rule_files"`      // JSON 形态规则片段
		ReferenceFiles []string `toml:"reference_files"` // CSV 参考表
	} `toml:"prompt"`

	I18n struct {
		Primary   string `toml:"primary"`
		Secondary string `toml:"secondary"`
	} `toml:"i18n"`

	Upload struct {
		MaxBytes int64 `toml:"max_bytes"`
	} `toml:"upload"`

	Telemetry struct {
		Enabled        bool   `toml:"enabled"`
		Endpoint       string `toml:"endpoint"`
		TimeoutSeconds int    `toml:"timeout_seconds"`
	} `toml:"telemetry"`
}

// AIConfig 模型调用相关配置
type AIConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	MaxOutputTokens int `toml:"max_output_tokens"`
	// 模型配置：完全通过配置文件提供，不再使用环境变量
	Models []ModelConfig `toml:"models"`
}

// ModelConfig 单个模型条目
type ModelConfig struct {
	ID             string            `toml:"id"`       // 唯一标识（如 gemini_flash / openai_4o）
	Provider       string            `toml:"provider"` // gemini | openai（OpenAI 兼容接口）
	Enabled        bool              `toml:"enabled"`
	APIURL         string            `toml:"api_url"`
	APIKey         string            `toml:"api_key"`
	Model          string            `toml:"model"`
	Headers        map[string]string `toml:"headers"` // 可选：自定义请求头
	SupportsVision bool              `toml:"supports_vision"`
	ExpectJSON     bool              `toml:"expect_json"`
	EnableSearch   bool              `toml:"enable_search"` // 启用搜索增强（联网检索 + 引用来源）
}

// Load 读取并解析 TOML 配置文件，并设置缺省值与基本校验
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}
	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 TOML 失败: %w", err)
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// 默认值设置
func applyDefaults(c *Config) {
	if c.App.Env == "" {
		c.App.Env = "dev"
	}
	if c.App.LogLevel == "" {
		c.App.LogLevel = "info"
	}
	if c.App.HTTPAddr == "" {
		c.App.HTTPAddr = ":8090"
	}
	if c.AI.TimeoutSeconds <= 0 {
		c.AI.TimeoutSeconds = 120
	}
	if c.AI.MaxOutputTokens <= 0 {
		c.AI.MaxOutputTokens = 4096
	}
	if c.Prompt.Dir == "" {
		c.Prompt.Dir = "prompts"
	}
	if c.Prompt.BaseFile == "" {
		c.Prompt.BaseFile = "base.txt"
	}
	if c.I18n.Primary == "" {
		c.I18n.Primary = "en"
	}
	if c.I18n.Secondary == "" {
		c.I18n.Secondary = "zh"
	}
	// 上传上限默认 8MB（与主流模型 inline 图片限制对齐）
	if c.Upload.MaxBytes <= 0 {
		c.Upload.MaxBytes = 8 << 20
	}
	if c.Telemetry.TimeoutSeconds <= 0 {
		c.Telemetry.TimeoutSeconds = 5
	}
}

// 基础校验
func validate(c *Config) error {
	enabled := 0
	for i, m := range c.AI.Models {
		if !m.Enabled {
			continue
		}
		enabled++
		if strings.TrimSpace(m.APIKey) == "" {
			return fmt.Errorf("ai.models[%d] 已启用但缺少 api_key", i)
		}
		switch strings.ToLower(strings.TrimSpace(m.Provider)) {
		case "gemini", "openai", "":
		default:
			return fmt.Errorf("非法 provider: %s（仅支持 gemini/openai）", m.Provider)
		}
	}
	if enabled == 0 {
		return fmt.Errorf("至少需要启用一个 ai.models 条目")
	}
	if c.I18n.Primary == c.I18n.Secondary {
		return fmt.Errorf("i18n.primary 与 i18n.secondary 不能相同")
	}
	if c.Upload.MaxBytes > 32<<20 {
		return fmt.Errorf("upload.max_bytes 需不超过 32MB")
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.Endpoint) == "" {
		return fmt.Errorf("已启用 telemetry，请提供 endpoint")
	}
	return nil
}
