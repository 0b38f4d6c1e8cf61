package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server     ServerConfig
	SQLite     SQLiteConfig
	Redis      RedisConfig
	Vector     VectorConfig
	LLM        LLMConfig
	Ingest     IngestConfig
	Retrieval  RetrievalConfig
	References ReferencesConfig
	Confluence ConfluenceConfig
	Jira       JiraConfig
	Logging    LoggingConfig
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  int
	WriteTimeout int
	BodyLimit    int
}

type SQLiteConfig struct {
	Path string
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// VectorConfig selects the vector store backend: "chromem" (embedded,
// persisted under Path) or "milvus" (external service at Endpoint). The
// similarity metric is cosine for both and is fixed for the lifetime of a
// collection.
type VectorConfig struct {
	Backend        string
	Path           string
	Endpoint       string
	CollectionName string
	VectorDim      int
}

type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Temperature    float32
	TopP           float32
	MaxTokens      int
	TimeoutSec     int
}

type IngestConfig struct {
	Dir          string
	ChunkSize    int
	ChunkOverlap int
	Workers      int
	IngestOnBoot bool
}

type RetrievalConfig struct {
	TopK               int
	RelevanceThreshold float32
}

type ReferencesConfig struct {
	ConfluenceBaseURL string
	JiraBaseURL       string
}

type ConfluenceConfig struct {
	BaseURL  string
	Username string
	Token    string
	PageIDs  []string
}

type JiraConfig struct {
	BaseURL    string
	Username   string
	Token      string
	ProjectKey string
	PageSize   int
}

type LoggingConfig struct {
	Level      string
	Format     string
	OutputPath string
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/infra-assist")

	viper.SetEnvPrefix("INFRA_ASSIST")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.readTimeout", 30)
	viper.SetDefault("server.writeTimeout", 30)
	viper.SetDefault("server.bodyLimit", 10485760)

	viper.SetDefault("sqlite.path", "./data/assist.db")

	viper.SetDefault("redis.enabled", false)
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)

	viper.SetDefault("vector.backend", "chromem")
	viper.SetDefault("vector.path", "./data/vectors")
	viper.SetDefault("vector.endpoint", "localhost:19530")
	viper.SetDefault("vector.collectionName", "knowledge_base")
	viper.SetDefault("vector.vectorDim", 1024)

	viper.SetDefault("llm.model", "gpt-4")
	viper.SetDefault("llm.embeddingModel", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.5)
	viper.SetDefault("llm.topP", 0.85)
	viper.SetDefault("llm.maxTokens", 600)
	viper.SetDefault("llm.timeoutSec", 10)

	viper.SetDefault("ingest.dir", "./pdf_dir")
	viper.SetDefault("ingest.chunkSize", 800)
	viper.SetDefault("ingest.chunkOverlap", 25)
	viper.SetDefault("ingest.workers", 4)
	viper.SetDefault("ingest.ingestOnBoot", true)

	viper.SetDefault("retrieval.topK", 5)
	viper.SetDefault("retrieval.relevanceThreshold", 0.75)

	viper.SetDefault("references.confluenceBaseURL", "https://confluence.org.com")
	viper.SetDefault("references.jiraBaseURL", "https://jira.org.com")

	viper.SetDefault("jira.pageSize", 500)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.outputPath", "stdout")
}
