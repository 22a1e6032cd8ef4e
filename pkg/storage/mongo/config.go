package mongo

import (
	"fmt"
	"net/url"
	"os"

	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrConfParamMissing = fmt.Errorf("configuration parameter missing")

type Config struct {
	Host   string `toml:"host"`
	Port   string `toml:"port"`
	DBName string `toml:"dbName"`
	User   string `toml:"user"`
	Pass   string `toml:"pass"`
}

// NewConfig reads the connection settings from MONGO_* environment variables.
func NewConfig() (*Config, error) {
	conf := new(Config)
	conf.FromEnv()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

// FromEnv fills empty fields from MONGO_HOST, MONGO_PORT, MONGO_DB_NAME, MONGO_USER and MONGO_PASS.
func (c *Config) FromEnv() {
	setFromEnv(&c.Host, "MONGO_HOST")
	setFromEnv(&c.Port, "MONGO_PORT")
	setFromEnv(&c.DBName, "MONGO_DB_NAME")
	setFromEnv(&c.User, "MONGO_USER")
	setFromEnv(&c.Pass, "MONGO_PASS")
}

func setFromEnv(field *string, key string) {
	if *field == "" {
		*field = os.Getenv(key)
	}
}

func (c *Config) Validate() error {
	switch {
	case c.Host == "":
		return fmt.Errorf("%w: MONGO_HOST", ErrConfParamMissing)
	case c.Port == "":
		return fmt.Errorf("%w: MONGO_PORT", ErrConfParamMissing)
	case c.DBName == "":
		return fmt.Errorf("%w: MONGO_DB_NAME", ErrConfParamMissing)
	}
	return nil
}

func (c *Config) conString() string {
	u := url.URL{Scheme: "mongodb", Host: c.Host + ":" + c.Port, Path: "/"}
	if c.User != "" && c.Pass != "" {
		u.User = url.UserPassword(c.User, c.Pass)
	}
	return u.String()
}

func (c *Config) Options() *options.ClientOptions {
	return options.Client().ApplyURI(c.conString())
}

// String masks the password.
func (c Config) String() string {
	pass := ""
	if c.Pass != "" {
		pass = "****"
	}
	return fmt.Sprintf("mongodb://%s:%s@%s:%s/%s", c.User, pass, c.Host, c.Port, c.DBName)
}
