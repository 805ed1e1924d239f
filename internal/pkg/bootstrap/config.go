// internal/pkg/bootstrap/config.go
package bootstrap

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Duration 让 yaml 里能直接写 "15s" / "24h" 这样的时长。
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Std 转回标准库类型。
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config 是整个进程的配置快照。
// 启动时加载一次，之后以只读方式注入各组件；不允许运行期的全局可变配置。
type Config struct {
	App struct {
		ServiceName string `yaml:"serviceName"`
		Port        int    `yaml:"port"`
	} `yaml:"app"`

	Infra struct {
		MySQLDSN   string `yaml:"mysqlDsn"`
		RedisAddr  string `yaml:"redisAddr"`
		KafkaAddrs string `yaml:"kafkaAddrs"`
		ZkAddrs    string `yaml:"zkAddrs"`
		Jaeger     struct {
			Endpoint string `yaml:"endpoint"`
		} `yaml:"jaeger"`
	} `yaml:"infra"`

	Checkout struct {
		TaxRate               float64 `yaml:"taxRate"`               // 默认 0.10
		FreeShippingThreshold float64 `yaml:"freeShippingThreshold"` // 默认 50.00
		FlatShippingFee       float64 `yaml:"flatShippingFee"`       // 默认 10.00
	} `yaml:"checkout"`

	Payment struct {
		Provider        string   `yaml:"provider"` // mock | hosted
		GatewayBaseURL  string   `yaml:"gatewayBaseUrl"`
		GatewayAPIKey   string   `yaml:"gatewayApiKey"`
		CallTimeout     Duration `yaml:"callTimeout"`
		MockAutoApprove bool     `yaml:"mockAutoApprove"`
	} `yaml:"payment"`

	Automation struct {
		Enabled            bool     `yaml:"enabled"`
		WebhookEnabled     bool     `yaml:"webhookEnabled"`
		WebhookBaseURL     string   `yaml:"webhookBaseUrl"`
		SinkKind           string   `yaml:"sinkKind"` // webhook | kafka | push
		KafkaTopic         string   `yaml:"kafkaTopic"`
		QueueSize          int      `yaml:"queueSize"`
		ScanInterval       Duration `yaml:"scanInterval"`
		LowStockThreshold  int      `yaml:"lowStockThreshold"`
		AbandonedCartAfter Duration `yaml:"abandonedCartAfter"`
		ReviewRequestAfter Duration `yaml:"reviewRequestAfter"`
		LeaderLockEnabled  bool     `yaml:"leaderLockEnabled"`
		SuppressionWindow  Duration `yaml:"suppressionWindow"`
	} `yaml:"automation"`
}

// Load 读取 yaml 配置文件并叠加环境变量覆盖。
// 任何缺省项都回落到可运行的开发默认值。
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, err
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.App.ServiceName = "checkout-service"
	cfg.App.Port = 8080
	cfg.Infra.MySQLDSN = "root:root@tcp(localhost:3306)/localcart?charset=utf8mb4&parseTime=True&loc=Local"
	cfg.Infra.RedisAddr = "localhost:6379"
	cfg.Infra.KafkaAddrs = "localhost:9092"
	cfg.Infra.ZkAddrs = "localhost:2181"
	cfg.Infra.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Checkout.TaxRate = 0.10
	cfg.Checkout.FreeShippingThreshold = 50.00
	cfg.Checkout.FlatShippingFee = 10.00
	cfg.Payment.Provider = "mock"
	cfg.Payment.CallTimeout = Duration(15 * time.Second)
	cfg.Payment.MockAutoApprove = true
	cfg.Automation.Enabled = true
	cfg.Automation.WebhookEnabled = true
	cfg.Automation.WebhookBaseURL = "http://n8n:5678/webhook"
	cfg.Automation.SinkKind = "webhook"
	cfg.Automation.KafkaTopic = "automation-events"
	cfg.Automation.QueueSize = 256
	cfg.Automation.ScanInterval = Duration(2 * time.Hour)
	cfg.Automation.LowStockThreshold = 10
	cfg.Automation.AbandonedCartAfter = Duration(24 * time.Hour)
	cfg.Automation.ReviewRequestAfter = Duration(7 * 24 * time.Hour)
	cfg.Automation.SuppressionWindow = Duration(24 * time.Hour)
	return cfg
}

func applyEnvOverrides(cfg *Config) {
	cfg.Infra.MySQLDSN = getEnv("MYSQL_DSN", cfg.Infra.MySQLDSN)
	cfg.Infra.RedisAddr = getEnv("REDIS_ADDR", cfg.Infra.RedisAddr)
	cfg.Infra.KafkaAddrs = getEnv("KAFKA_ADDRS", cfg.Infra.KafkaAddrs)
	cfg.Infra.ZkAddrs = getEnv("ZK_ADDRS", cfg.Infra.ZkAddrs)
	cfg.Infra.Jaeger.Endpoint = getEnv("JAEGER_ENDPOINT", cfg.Infra.Jaeger.Endpoint)
	cfg.Payment.Provider = getEnv("PAYMENT_PROVIDER", cfg.Payment.Provider)
	cfg.Payment.GatewayBaseURL = getEnv("PAYMENT_GATEWAY_URL", cfg.Payment.GatewayBaseURL)
	cfg.Payment.GatewayAPIKey = getEnv("PAYMENT_GATEWAY_KEY", cfg.Payment.GatewayAPIKey)
	cfg.Automation.WebhookBaseURL = getEnv("WEBHOOK_BASE_URL", cfg.Automation.WebhookBaseURL)

	if v, ok := os.LookupEnv("WEBHOOK_ENABLED"); ok {
		cfg.Automation.WebhookEnabled, _ = strconv.ParseBool(v)
	}
	if v, ok := os.LookupEnv("AUTOMATION_ENABLED"); ok {
		cfg.Automation.Enabled, _ = strconv.ParseBool(v)
	}
	if v, ok := os.LookupEnv("APP_PORT"); ok {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.App.Port = p
		}
	}
}

// getEnv 从环境变量中读取配置，不存在时返回默认值。
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
