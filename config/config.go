package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config представляет структуру конфигурации для приложения.
type Config struct {
	App struct {
		Port            string `mapstructure:"port"`
		Env             string `mapstructure:"env"`
		BaseURL         string `mapstructure:"baseUrl"`
		ReadTimeout     int    `mapstructure:"readTimeout"`
		WriteTimeout    int    `mapstructure:"writeTimeout"`
		ShutdownTimeout int    `mapstructure:"shutdownTimeout"`
	} `mapstructure:"app"`
	Firestore struct {
		ProjectID       string `mapstructure:"projectId"`
		CredentialsFile string `mapstructure:"credentialsFile"`
		Collection      string `mapstructure:"collection"`
	} `mapstructure:"firestore"`
	Database struct {
		DSN string `mapstructure:"dsn"`
	} `mapstructure:"database"`
	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`
	Kafka struct {
		Brokers []string `mapstructure:"brokers"`
		Enabled bool     `mapstructure:"enabled"`
	} `mapstructure:"kafka"`
	Stripe struct {
		APIKey        string `mapstructure:"apiKey"`
		WebhookSecret string `mapstructure:"webhookSecret"`
	} `mapstructure:"stripe"`
	Auth struct {
		JWTSecret string `mapstructure:"jwtSecret"`
	} `mapstructure:"auth"`
	Logging struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"logging"`
}

// Load загружает конфигурацию из файла и переменных окружения.
func Load() (*Config, error) {
	// В локальной среде подхватываем .env, в production переменные уже заданы
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Значения по умолчанию
	v.SetDefault("app.port", "8080")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.baseUrl", "http://localhost:3000")
	v.SetDefault("app.readTimeout", 15)
	v.SetDefault("app.writeTimeout", 15)
	v.SetDefault("app.shutdownTimeout", 30)
	v.SetDefault("firestore.collection", "users")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("logging.level", "info")

	// Чтение переменных окружения: APP_PORT, STRIPE_WEBHOOK_SECRET и т.д.
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Файл конфигурации необязателен, окружения достаточно
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
