package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config 是整个服务的注入式配置，取代散落的全局地址常量。
type Config struct {
	Service struct {
		Name string `yaml:"name"`
		Port int    `yaml:"port"`
	} `yaml:"service"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	MySQL struct {
		DSN string `yaml:"dsn"`
	} `yaml:"mysql"`

	Redis struct {
		Enabled  bool   `yaml:"enabled"`
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Kafka struct {
		Enabled bool     `yaml:"enabled"`
		Brokers []string `yaml:"brokers"`
		Topic   string   `yaml:"topic"`
	} `yaml:"kafka"`

	Zookeeper struct {
		Enabled bool     `yaml:"enabled"`
		Servers []string `yaml:"servers"`
	} `yaml:"zookeeper"`

	Nacos struct {
		Enabled     bool   `yaml:"enabled"`
		ServerAddrs string `yaml:"server_addrs"`
		Namespace   string `yaml:"namespace"`
		Group       string `yaml:"group"`
	} `yaml:"nacos"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint"`
	} `yaml:"jaeger"`

	// Services 配置协作方。启用 Nacos 时按服务名发现，否则走静态基地址。
	Services struct {
		UserServiceName    string `yaml:"user_service_name"`
		ProductServiceName string `yaml:"product_service_name"`
		UserBaseURL        string `yaml:"user_base_url"`
		ProductBaseURL     string `yaml:"product_base_url"`
	} `yaml:"services"`

	Order struct {
		// ReserveOnCreate 控制创建时是否同步预占库存。
		// 关闭时创建不做任何库存变更，只在取消/删除路径做补偿。
		ReserveOnCreate   bool          `yaml:"reserve_on_create"`
		ProcessingTimeout time.Duration `yaml:"processing_timeout"`
		// AcceptanceRules 是一组 CEL 表达式，全部为真才接受创建请求。
		AcceptanceRules []string `yaml:"acceptance_rules"`
		IdempotencyTTL  time.Duration `yaml:"idempotency_ttl"`
	} `yaml:"order"`
}

// Load 读取 yaml 配置并套用环境变量覆盖。path 为空时取 CONFIG_PATH。
func Load(path string) (*Config, error) {
	if path == "" {
		path = getEnv("CONFIG_PATH", "configs/order-service.yaml")
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnvOverrides(cfg)

	if cfg.Service.Name == "" {
		cfg.Service.Name = "order-service"
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = 8083
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Log.Level = "info"
	cfg.Order.ReserveOnCreate = true
	cfg.Order.ProcessingTimeout = 10 * time.Second
	cfg.Order.IdempotencyTTL = 24 * time.Hour
	cfg.Services.UserServiceName = "user-service"
	cfg.Services.ProductServiceName = "product-service"
	return cfg
}

// 环境变量优先级高于文件，方便容器化部署时注入地址与凭据。
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.MySQL.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JAEGER_ENDPOINT"); v != "" {
		cfg.Jaeger.Endpoint = v
	}
	if v := os.Getenv("NACOS_SERVER_ADDRS"); v != "" {
		cfg.Nacos.ServerAddrs = v
	}
	if v := os.Getenv("NACOS_NAMESPACE"); v != "" {
		cfg.Nacos.Namespace = v
	}
	if v := os.Getenv("NACOS_GROUP"); v != "" {
		cfg.Nacos.Group = v
	}
	if v := os.Getenv("USER_SERVICE_URL"); v != "" {
		cfg.Services.UserBaseURL = v
	}
	if v := os.Getenv("PRODUCT_SERVICE_URL"); v != "" {
		cfg.Services.ProductBaseURL = v
	}
	if v := os.Getenv("SERVICE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Service.Port = port
		}
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
