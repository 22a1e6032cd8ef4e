// Package config loads the TOML configuration of the commentsync binaries.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"

	"github.com/nativesixs/fullstack-exercise-sub000/pkg/storage/mongo"
)

const (
	EnvAPIKey   = "COMMENTSYNC_API_KEY"
	EnvPassword = "COMMENTSYNC_PASSWORD"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Duration decodes TOML strings such as "5s" or "1m30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Client configures the commentsync client.
type Client struct {
	LogLevel string `toml:"logLevel"`
	// APIBase is the HTTP base of the backend; the push stream address is derived from it.
	APIBase  string `toml:"apiBase"`
	APIKey   string `toml:"apiKey"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	// Mode selects the push transport: "live" or "mock".
	Mode              string   `toml:"mode"`
	VotesPath         string   `toml:"votesPath"`
	RequestTimeout    Duration `toml:"requestTimeout"`
	ReconnectInterval Duration `toml:"reconnectInterval"`
}

func DefaultClient() Client {
	return Client{
		LogLevel:          "info",
		APIBase:           "http://localhost:8080",
		Mode:              "live",
		VotesPath:         "data/votes",
		RequestTimeout:    Duration{10 * time.Second},
		ReconnectInterval: Duration{5 * time.Second},
	}
}

// Validate fills secrets from the environment and checks the result.
func (c *Client) Validate() error {
	setFromEnv(&c.APIKey, EnvAPIKey)
	setFromEnv(&c.Password, EnvPassword)

	if c.APIBase == "" {
		return fmt.Errorf("%w: apiBase is empty", ErrInvalidConfig)
	}
	if c.Mode != "live" && c.Mode != "mock" {
		return fmt.Errorf("%w: mode must be live or mock, got %q", ErrInvalidConfig, c.Mode)
	}
	if c.ReconnectInterval.Duration <= 0 {
		return fmt.Errorf("%w: reconnectInterval must be positive", ErrInvalidConfig)
	}
	return nil
}

func (c Client) String() string {
	return fmt.Sprintf("apiBase=%s apiKey=%s username=%s password=%s mode=%s votesPath=%s",
		c.APIBase, mask(c.APIKey), c.Username, mask(c.Password), c.Mode, c.VotesPath)
}

// Server configures the development backend.
type Server struct {
	ServiceName string   `toml:"serviceName"`
	HTTPAddr    string   `toml:"httpAddr"`
	LogLevel    string   `toml:"logLevel"`
	APIKey      string   `toml:"apiKey"`
	Username    string   `toml:"username"`
	Password    string   `toml:"password"`
	TokenTTL    Duration `toml:"tokenTTL"`
	// ModerationPath points at a JSON banned word list. Empty disables moderation.
	ModerationPath string `toml:"moderationPath"`
	// SeedArticle is the title of an article created at startup, if set.
	SeedArticle string `toml:"seedArticle"`

	KafkaAddr  string `toml:"kafkaAddr"`
	KafkaTopic string `toml:"kafkaTopic"`
	KafkaBatch int    `toml:"kafkaBatch"`

	Mongo mongo.Config `toml:"mongo"`
}

func DefaultServer() Server {
	return Server{
		ServiceName: "devserver",
		HTTPAddr:    ":8080",
		LogLevel:    "info",
		Username:    "admin",
		TokenTTL:    Duration{time.Hour},
		KafkaBatch:  1,
	}
}

func (c *Server) Validate() error {
	setFromEnv(&c.APIKey, EnvAPIKey)
	setFromEnv(&c.Password, EnvPassword)
	c.Mongo.FromEnv()

	if c.APIKey == "" {
		return fmt.Errorf("%w: apiKey is empty, set it in the file or %s", ErrInvalidConfig, EnvAPIKey)
	}
	if c.Username == "" || c.Password == "" {
		return fmt.Errorf("%w: username and password are required", ErrInvalidConfig)
	}
	if !strings.Contains(c.HTTPAddr, ":") {
		log.Warn("[config] use ':' before port number, e.g. ':8080'")
	}
	return nil
}

func (c Server) String() string {
	return fmt.Sprintf("service=%s http=%s apiKey=%s username=%s password=%s kafka=%s/%s mongo=%s",
		c.ServiceName, c.HTTPAddr, mask(c.APIKey), c.Username, mask(c.Password), c.KafkaAddr, c.KafkaTopic, c.Mongo)
}

// LogKeeper configures the request log indexer.
type LogKeeper struct {
	LogLevel     string   `toml:"logLevel"`
	KafkaBrokers []string `toml:"kafkaBrokers"`
	KafkaTopic   string   `toml:"kafkaTopic"`
	KafkaGroupID string   `toml:"kafkaGroupID"`

	ElasticSearchIndex string   `toml:"elasticSearchIndex"`
	ElasticSearchNodes []string `toml:"elasticSearchNodes"`

	NumWorkers int `toml:"numWorkers"`
}

func DefaultLogKeeper() LogKeeper {
	return LogKeeper{
		LogLevel:           "info",
		KafkaTopic:         "requests",
		KafkaGroupID:       "logkeeper",
		ElasticSearchIndex: "requests",
		NumWorkers:         4,
	}
}

func (c *LogKeeper) Validate() error {
	if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
		return fmt.Errorf("%w: kafkaBrokers and kafkaTopic are required", ErrInvalidConfig)
	}
	if len(c.ElasticSearchNodes) == 0 {
		return fmt.Errorf("%w: elasticSearchNodes is empty", ErrInvalidConfig)
	}
	if c.NumWorkers < 1 {
		c.NumWorkers = 1
	}
	return nil
}

// Load decodes the TOML file at path over the defaults already in v. A missing
// file leaves the defaults in place when optional is set.
func Load(path string, v any, optional bool) error {
	md, err := toml.DecodeFile(path, v)
	if err != nil {
		if optional && errors.Is(err, os.ErrNotExist) {
			log.Infof("[config] %s not found, using defaults", path)
			return nil
		}
		return fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	for _, key := range md.Undecoded() {
		log.Warnf("[config] unknown key %q in %s", key.String(), path)
	}
	return nil
}

// SetLogLevel applies one of debug, info, warn or error. Other values are ignored.
func SetLogLevel(level string) {
	switch strings.ToLower(level) {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "info":
		log.SetLevel(log.InfoLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.Warnf("[config] unknown log level %q", level)
	}
}

func setFromEnv(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
