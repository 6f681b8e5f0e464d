package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

type Config struct {
	Server       ServerConfig       `json:"server"`
	Storage      StorageConfig      `json:"storage"`
	Engine       EngineConfig       `json:"engine"`
	LLM          LLMConfig          `json:"llm"`
	Mailer       MailerConfig       `json:"mailer"`
	Scheduler    SchedulerConfig    `json:"scheduler"`
	Orchestrator OrchestratorConfig `json:"orchestrator"`
}

type ServerConfig struct {
	HTTPAddr string `json:"http_addr"`
}

type StorageConfig struct {
	PostgresDSN string `json:"postgres_dsn"`
}

// EngineConfig controls the action/report engine itself. Entities is the
// allowlist mapping logical entity names used by actions and report templates
// to real tables and the columns the engine may touch.
type EngineConfig struct {
	Entities       map[string]EntityConfig `json:"entities"`
	QueryTimeoutMS int                     `json:"query_timeout_ms"`
}

type EntityConfig struct {
	Table  string   `json:"table"`
	Fields []string `json:"fields"`
}

type LLMConfig struct {
	Provider        string `json:"provider"`
	APIKey          string `json:"api_key"`
	APIBase         string `json:"api_base"`
	Model           string `json:"model"`
	TimeoutMS       int    `json:"timeout_ms"`
	MaxOutputTokens int    `json:"max_output_tokens"`
}

type MailerConfig struct {
	SMTPAddr string `json:"smtp_addr"`
	From     string `json:"from"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type SchedulerConfig struct {
	Enabled          bool `json:"enabled"`
	PollIntervalSecs int  `json:"poll_interval_secs"`
}

type OrchestratorConfig struct {
	TemporalAddr string `json:"temporal_addr"`
	Namespace    string `json:"namespace"`
	TaskQueue    string `json:"task_queue"`
	HealthAddr   string `json:"health_addr"`
}

func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return errors.New("server.http_addr required")
	}
	if c.Storage.PostgresDSN == "" {
		return errors.New("storage.postgres_dsn required")
	}
	for name, entity := range c.Engine.Entities {
		if strings.TrimSpace(entity.Table) == "" {
			return errors.New("engine.entities." + name + ".table required")
		}
		if len(entity.Fields) == 0 {
			return errors.New("engine.entities." + name + ".fields required")
		}
	}
	if strings.TrimSpace(c.LLM.Provider) != "" {
		if strings.TrimSpace(c.LLM.Model) == "" {
			return errors.New("llm.model required when llm.provider is set")
		}
		p := strings.ToLower(strings.TrimSpace(c.LLM.Provider))
		if (p == "openai" || p == "anthropic") && strings.TrimSpace(c.LLM.APIKey) == "" {
			return errors.New("llm.api_key required for llm.provider " + p)
		}
	}
	if strings.TrimSpace(c.Mailer.From) != "" && strings.TrimSpace(c.Mailer.SMTPAddr) == "" {
		return errors.New("mailer.smtp_addr required when mailer.from is set")
	}
	if c.Orchestrator.TemporalAddr != "" && strings.TrimSpace(c.Orchestrator.TaskQueue) == "" {
		return errors.New("orchestrator.task_queue required when orchestrator.temporal_addr is set")
	}
	return nil
}
