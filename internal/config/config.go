package config

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/agubarev/handbook/pkg/database"
	"github.com/asaskevich/govalidator"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// errors
var (
	ErrEmptySecret = errors.New("auth secret is empty")
	ErrEmptyDSN    = errors.New("database dsn is empty")
)

// EnvPrefix is the prefix of every environment variable read
const EnvPrefix = "HANDBOOK"

// Config holds everything the server needs to start
type Config struct {
	Database struct {
		Driver string `mapstructure:"driver" valid:"in(mysql|postgres|memory),required"`
		DSN    string `mapstructure:"dsn"`
	} `mapstructure:"database"`

	Server struct {
		Addr string `mapstructure:"addr" valid:"required"`
	} `mapstructure:"server"`

	Auth struct {
		Secret string        `mapstructure:"secret"`
		TTL    time.Duration `mapstructure:"ttl"`
	} `mapstructure:"auth"`

	Log struct {
		Dir   string `mapstructure:"dir"`
		Debug bool   `mapstructure:"debug"`
	} `mapstructure:"log"`

	Events struct {
		BadgerDir string `mapstructure:"badger_dir"`
	} `mapstructure:"events"`
}

// Defaults registers default values on a given viper instance
func Defaults(v *viper.Viper) {
	v.SetDefault("database.driver", database.DriverMemory)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("auth.ttl", 24*time.Hour)
	v.SetDefault("log.debug", false)
}

// New returns a viper instance reading HANDBOOK_* environment
// variables and, when found, the given config file or
// $HOME/.handbook.yaml
func New(file string) (*viper.Viper, error) {
	v := viper.New()
	Defaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			return nil, errors.Wrap(err, "failed to locate home directory")
		}

		v.AddConfigPath(home)
		v.SetConfigName(".handbook")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		// a missing default file is fine, everything may come from the environment
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || file != "" {
			return nil, errors.Wrap(err, "failed to read config")
		}
	}

	return v, nil
}

// Load unmarshals and validates the configuration
func Load(v *viper.Viper) (c Config, err error) {
	// environment-only keys are invisible to Unmarshal unless bound
	for _, key := range []string{
		"database.driver",
		"database.dsn",
		"server.addr",
		"auth.secret",
		"auth.ttl",
		"log.dir",
		"log.debug",
		"events.badger_dir",
	} {
		if err = v.BindEnv(key); err != nil {
			return c, errors.Wrapf(err, "failed to bind %s", key)
		}
	}

	if err = v.Unmarshal(&c); err != nil {
		return c, errors.Wrap(err, "failed to decode config")
	}

	return c, c.Validate()
}

// Validate config
func (c Config) Validate() error {
	// nested structs are not traversed by the validator
	for _, section := range []interface{}{c.Database, c.Server} {
		if _, err := govalidator.ValidateStruct(section); err != nil {
			return errors.Wrap(err, "invalid config")
		}
	}

	if c.Database.Driver != database.DriverMemory && strings.TrimSpace(c.Database.DSN) == "" {
		return ErrEmptyDSN
	}

	if strings.TrimSpace(c.Auth.Secret) == "" {
		return ErrEmptySecret
	}

	return nil
}

// BadgerDir returns an absolute events directory, empty when the
// badger event store is disabled
func (c Config) BadgerDir() (string, error) {
	if c.Events.BadgerDir == "" {
		return "", nil
	}

	dir, err := homedir.Expand(c.Events.BadgerDir)
	if err != nil {
		return "", errors.Wrap(err, "failed to expand events directory")
	}

	return filepath.Abs(dir)
}
