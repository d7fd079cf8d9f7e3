package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Research holds the hard numeric budgets of the pipeline. These are the
// final enforcement authority over every advisory model judgment; no
// component embeds the limits as prose.
type Research struct {
	MaxClarificationRounds     int `mapstructure:"max_clarification_rounds"`
	MaxConcurrentResearchUnits int `mapstructure:"max_concurrent_research_units"`
	MaxResearcherIterations    int `mapstructure:"max_researcher_iterations"`
	MaxToolCallsPerWorker      int `mapstructure:"max_tool_calls_per_worker"`
	MaxFinalStatements         int `mapstructure:"max_final_statements"`
	MaxTopics                  int `mapstructure:"max_topics"`
	PlanSteps                  int `mapstructure:"plan_steps"`
	RetrieveTopK               int `mapstructure:"retrieve_top_k"`
}

// Services holds endpoints for the external collaborators.
type Services struct {
	LLMURL           string        `mapstructure:"llm_url"`
	RetrievalURL     string        `mapstructure:"retrieval_url"`
	WebSearchURL     string        `mapstructure:"web_search_url"`
	TraceURL         string        `mapstructure:"trace_url"`
	Timeout          time.Duration `mapstructure:"timeout"`
	RetrievalRPS     float64       `mapstructure:"retrieval_rps"`
	WebSearchRPS     float64       `mapstructure:"web_search_rps"`
	CredibilityRules string        `mapstructure:"credibility_rules"`
}

// Redis holds retrieval-cache settings.
type Redis struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

// Postgres holds report-store settings.
type Postgres struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Temporal holds workflow engine connection settings.
type Temporal struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Config is the full orchestrator configuration.
type Config struct {
	Research Research `mapstructure:"research"`
	Services Services `mapstructure:"services"`
	Redis    Redis    `mapstructure:"redis"`
	Postgres Postgres `mapstructure:"postgres"`
	Temporal Temporal `mapstructure:"temporal"`
	Logging  struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
	MetricsPort int `mapstructure:"metrics_port"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("research.max_clarification_rounds", 2)
	v.SetDefault("research.max_concurrent_research_units", 3)
	v.SetDefault("research.max_researcher_iterations", 3)
	v.SetDefault("research.max_tool_calls_per_worker", 3)
	v.SetDefault("research.max_final_statements", 3)
	v.SetDefault("research.max_topics", 10)
	v.SetDefault("research.plan_steps", 3)
	v.SetDefault("research.retrieve_top_k", 3)

	v.SetDefault("services.llm_url", "http://llm-service:8000")
	v.SetDefault("services.retrieval_url", "http://retrieval:8100/retrieve")
	v.SetDefault("services.web_search_url", "http://retrieval:8100/web_search")
	v.SetDefault("services.timeout", 15*time.Second)

	v.SetDefault("redis.addr", "redis:6379")
	v.SetDefault("redis.cache_ttl", time.Hour)

	v.SetDefault("postgres.host", "postgres")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "deepscout")
	v.SetDefault("postgres.database", "deepscout")
	v.SetDefault("postgres.sslmode", "disable")

	v.SetDefault("temporal.host_port", "temporal:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "deepscout-research")

	v.SetDefault("logging.level", "info")
	v.SetDefault("metrics_port", 2112)
}

// Load reads configuration from CONFIG_PATH (or the given path), applies
// env overrides (DEEPSCOUT_ prefix), and validates the budgets. A missing
// file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("DEEPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects budgets that would deadlock or unbound the pipeline.
func (c *Config) Validate() error {
	r := c.Research
	if r.MaxClarificationRounds < 0 {
		return fmt.Errorf("config: max_clarification_rounds must be >= 0")
	}
	if r.MaxConcurrentResearchUnits < 1 {
		return fmt.Errorf("config: max_concurrent_research_units must be >= 1")
	}
	if r.MaxResearcherIterations < 1 {
		return fmt.Errorf("config: max_researcher_iterations must be >= 1")
	}
	if r.MaxToolCallsPerWorker < 1 {
		return fmt.Errorf("config: max_tool_calls_per_worker must be >= 1")
	}
	if r.MaxFinalStatements < 1 {
		return fmt.Errorf("config: max_final_statements must be >= 1")
	}
	if r.MaxTopics < 1 {
		return fmt.Errorf("config: max_topics must be >= 1")
	}
	// Plan step count is a correctness invariant consumed by the
	// supervisor's fan-out assumptions, not a tunable.
	if r.PlanSteps != 3 {
		return fmt.Errorf("config: plan_steps must be exactly 3, got %d", r.PlanSteps)
	}
	if r.RetrieveTopK < 1 {
		return fmt.Errorf("config: retrieve_top_k must be >= 1")
	}
	return nil
}
