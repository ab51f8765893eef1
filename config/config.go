package config

import (
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FOLDSERVE"

	DefaultRoot           = "."
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 8000
	DefaultTimeout        = 5 * time.Second
	DefaultMaxHeaderBytes = 8 * 1024
	DefaultWorkers        = 1
	DefaultServiceName    = "foldserve"
)

var ErrInvalidConfig = errors.New("config: invalid configuration")

// Config holds everything needed to run the server. Values come from, in
// order of precedence, command line flags, FOLDSERVE_* environment variables
// (a .env file included), an optional config file and the defaults below.
type Config struct {
	Root  string `mapstructure:"fold" validate:"required,dir"`
	Host  string `mapstructure:"host"`
	Port  int    `mapstructure:"port" validate:"min=1,max=65535"`
	Debug bool   `mapstructure:"debug"`

	ReadTimeout    time.Duration `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout" validate:"gt=0"`
	IOTimeout      time.Duration `mapstructure:"io_timeout" validate:"gt=0"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes" validate:"min=256"`
	Workers        int           `mapstructure:"workers" validate:"min=1"`

	// RateLimit caps accepted connections per second. Zero disables it.
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`

	Telemetry Telemetry `mapstructure:",squash"`
}

type Telemetry struct {
	// Endpoint is the OTLP gRPC collector URL. Export is off when empty.
	Endpoint    string `mapstructure:"otlp_endpoint" validate:"omitempty,url"`
	ServiceName string `mapstructure:"service_name" validate:"required"`
}

func (telemetry Telemetry) Enabled() bool {
	return telemetry.Endpoint != ""
}

// Address is the host:port the server listens on.
func (cfg *Config) Address() string {
	return net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
}

// RegisterFlags adds the server flags to flags.
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringP("fold", "f", DefaultRoot, "directory to serve")
	flags.IntP("port", "p", DefaultPort, "port to listen on")
	debug := boolValue(false)
	flags.VarP(&debug, "debug", "d", "enable debug logging (true or false)")
	flags.String("host", DefaultHost, "address to listen on")
	flags.Duration("read-timeout", DefaultTimeout, "time allowed to receive a request")
	flags.Duration("write-timeout", DefaultTimeout, "time allowed to send a response")
	flags.Duration("io-timeout", DefaultTimeout, "time allowed for a single directory listing or file read")
	flags.Int("max-header-bytes", DefaultMaxHeaderBytes, "maximum size of the request line and headers")
	flags.Int("workers", DefaultWorkers, "number of connections served concurrently")
	flags.Float64("rate-limit", 0, "accepted connections per second, 0 for unlimited")
	flags.String("otlp-endpoint", "", "OTLP gRPC endpoint for traces, metrics and logs")
	flags.String("service-name", DefaultServiceName, "service name reported to the collector")
	flags.String("config", "", "optional config file (yaml, toml or json)")
}

// Load reads the configuration for flags, which must have been set up with
// RegisterFlags.
func Load(flags *pflag.FlagSet) (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var err error
	flags.VisitAll(func(flag *pflag.Flag) {
		if flag.Name == "config" || err != nil {
			return
		}
		err = v.BindPFlag(strings.ReplaceAll(flag.Name, "-", "_"), flag)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to bind flags: %w", err)
	}

	file, _ := flags.GetString("config")
	if file == "" {
		file = v.GetString("config")
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Root != "" {
		root, err := filepath.Abs(cfg.Root)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve served directory: %w", err)
		}
		cfg.Root = root
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("fold", DefaultRoot)
	v.SetDefault("host", DefaultHost)
	v.SetDefault("port", DefaultPort)
	v.SetDefault("debug", false)

	v.SetDefault("read_timeout", DefaultTimeout)
	v.SetDefault("write_timeout", DefaultTimeout)
	v.SetDefault("io_timeout", DefaultTimeout)
	v.SetDefault("max_header_bytes", DefaultMaxHeaderBytes)
	v.SetDefault("workers", DefaultWorkers)
	v.SetDefault("rate_limit", 0)

	v.SetDefault("otlp_endpoint", "")
	v.SetDefault("service_name", DefaultServiceName)
}

// boolValue is a bool flag that always takes a value, so both "-d true" and
// "--debug=false" parse. A pflag bool would leave "true" as an argument.
type boolValue bool

func (b *boolValue) Set(s string) error {
	v, err := strconv.ParseBool(s)
	if err != nil {
		return err
	}
	*b = boolValue(v)
	return nil
}

func (b *boolValue) String() string {
	return strconv.FormatBool(bool(*b))
}

func (b *boolValue) Type() string {
	return "bool"
}

var validate = validator.New()

// Validate reports every rule cfg breaks, wrapped in ErrInvalidConfig.
func (cfg *Config) Validate() error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}

	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	problems := make([]string, 0, len(fieldErrors))
	for _, fieldError := range fieldErrors {
		problems = append(problems, describe(fieldError))
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
}

func describe(fieldError validator.FieldError) string {
	switch fieldError.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", fieldError.Field())
	case "dir":
		return fmt.Sprintf("%s %q is not an existing directory", fieldError.Field(), fieldError.Value())
	case "url":
		return fmt.Sprintf("%s %q is not a URL", fieldError.Field(), fieldError.Value())
	default:
		return fmt.Sprintf("%s must satisfy %s=%s, got %v", fieldError.Field(), fieldError.Tag(), fieldError.Param(), fieldError.Value())
	}
}
