package cmd

import (
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/akaashnidhiss/agentic-supplier-negotiation/internal/logger"
)

const (
	app       = "sourcer"
	envPrefix = "SOURCER"
)

type Config struct {
	Specs      string          `mapstructure:"specs"`
	Replies    string          `mapstructure:"replies"`
	ResultsDir string          `mapstructure:"results-dir" validate:"required"`
	DemoMode   bool            `mapstructure:"demo-mode"`
	Suppliers  SuppliersConfig `mapstructure:"suppliers"`
	Store      StoreConfig     `mapstructure:"store"`
	AI         AIConfig        `mapstructure:"ai"`
	Scoring    ScoringConfig   `mapstructure:"scoring"`
	Mail       MailConfig      `mapstructure:"mail"`
	Server     ServerConfig    `mapstructure:"server"`
}

type SuppliersConfig struct {
	SeedFile string `mapstructure:"seed-file"`
}

type StoreConfig struct {
	Path string `mapstructure:"path"`
}

type AIConfig struct {
	Enabled  bool         `mapstructure:"enabled"`
	Provider string       `mapstructure:"provider" validate:"omitempty,oneof=gemini"`
	Gemini   GeminiConfig `mapstructure:"gemini"`
}

type GeminiConfig struct {
	APIKey            string   `mapstructure:"api-key"`
	APIKeyFile        string   `mapstructure:"api-key-file"`
	Model             string   `mapstructure:"model"`
	Temperature       *float32 `mapstructure:"temperature" validate:"omitempty,gte=0,lte=2"`
	MaxOutputTokens   int32    `mapstructure:"max-output-tokens" validate:"gte=0"`
	MaxRetries        int      `mapstructure:"max-retries" validate:"gte=0"`
	MaxLogLength      int      `mapstructure:"max-log-length" validate:"gte=0"`
	RequestsPerSecond float64  `mapstructure:"requests-per-second" validate:"gte=0"`
	Concurrency       int      `mapstructure:"concurrency" validate:"gte=0"`
}

type ScoringConfig struct {
	FormulaFile         string        `mapstructure:"formula-file"`
	Suggest             bool          `mapstructure:"suggest"`
	SuggestTimeout      time.Duration `mapstructure:"suggest-timeout" validate:"gte=0"`
	ReplaceExistingBids bool          `mapstructure:"replace-existing-bids"`
}

type MailConfig struct {
	FromEmail string     `mapstructure:"from-email" validate:"omitempty,email"`
	FromName  string     `mapstructure:"from-name"`
	SMTP      SMTPConfig `mapstructure:"smtp"`
}

type SMTPConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port" validate:"gte=0,lte=65535"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	PasswordFile string `mapstructure:"password-file"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "sourcer turns spec documents into RFQs and scores supplier replies",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is sourcer.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
	setDefaults(viper.GetViper())
	bindEnv(viper.GetViper())
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("specs", filepath.Join("demo", "sample_specs.zip"))
	v.SetDefault("replies", filepath.Join("demo", "simulated_replies.json"))
	v.SetDefault("results-dir", "results")
	v.SetDefault("demo-mode", true)
	v.SetDefault("suppliers.seed-file", filepath.Join("demo", "suppliers_seed.csv"))
	v.SetDefault("ai.provider", "gemini")
	v.SetDefault("ai.gemini.max-retries", 3)
	v.SetDefault("ai.gemini.max-log-length", 2000)
	v.SetDefault("ai.gemini.requests-per-second", 1.0)
	v.SetDefault("ai.gemini.concurrency", 4)
	v.SetDefault("scoring.suggest", true)
	v.SetDefault("scoring.suggest-timeout", "30s")
	v.SetDefault("mail.smtp.port", 587)
	v.SetDefault("server.addr", ":8080")
}

// bindEnv registers keys without a default so that SOURCER_* overrides reach Unmarshal.
func bindEnv(v *viper.Viper) {
	for _, key := range []string{
		"store.path",
		"ai.enabled",
		"ai.gemini.api-key",
		"ai.gemini.api-key-file",
		"ai.gemini.model",
		"ai.gemini.max-output-tokens",
		"scoring.formula-file",
		"scoring.replace-existing-bids",
		"mail.from-email",
		"mail.from-name",
		"mail.smtp.host",
		"mail.smtp.username",
		"mail.smtp.password",
		"mail.smtp.password-file",
		"ai.gemini.temperature",
	} {
		if err := v.BindEnv(key); err != nil {
			log.Fatalf("binding environment for %s: %v", key, err)
		}
	}
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		// Defaults and environment are enough when no config file exists,
		// but an explicit or unparseable one is fatal.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

var validate = validator.New()

func getConfig() (*Config, error) {
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := validate.Struct(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// newLogger builds the command logger; a fatal error here has no logger to report to.
func newLogger(runID, eventLog string) *zap.Logger {
	l, err := logger.New(logger.Options{
		JSON:     viper.GetBool("json"),
		Debug:    viper.GetBool("debug"),
		EventLog: eventLog,
		RunID:    runID,
	})
	if err != nil {
		log.Fatalf("creating a logger: %s", err)
	}
	return l
}

// mustConfig loads the config or exits through the logger.
func mustConfig(l *zap.Logger) *Config {
	config, err := getConfig()
	if err != nil {
		l.Fatal("getting a config", zap.Error(err))
	}
	return config
}
