// cmd/order-service/main.go
package main

import (
	"context"
	"flag"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"orderhub/internal/pkg/bootstrap"
	"orderhub/internal/pkg/httpclient"
	"orderhub/internal/pkg/logger"
	"orderhub/internal/pkg/metrics"
	"orderhub/internal/service/order/application"
	"orderhub/internal/service/order/application/rule"
	"orderhub/internal/service/order/domain"
	"orderhub/internal/service/order/infrastructure"
	"orderhub/internal/service/order/infrastructure/adapter"
	"orderhub/internal/service/order/interfaces"
	"orderhub/internal/service/order/port"
)

// main 是应用的组装根：创建并组装所有依赖项，然后启动服务。
func main() {
	configPath := flag.String("config", "", "path to yaml config")
	flag.Parse()

	cfg, err := bootstrap.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Service.Name, cfg.Log.Level)

	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open mysql")
	}
	repo := infrastructure.NewGormOrderRepository(db)
	if err := repo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate schema")
	}

	m := metrics.NewOrderMetrics()
	tracer := otel.Tracer(cfg.Service.Name)

	rules, err := rule.NewEngine(cfg.Order.AcceptanceRules)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid acceptance rules")
	}

	// 协作服务地址：启用 Nacos 时在 StartService 里换成发现式解析
	staticResolver := httpclient.StaticResolver{
		cfg.Services.UserServiceName:    cfg.Services.UserBaseURL,
		cfg.Services.ProductServiceName: cfg.Services.ProductBaseURL,
	}

	var shutdown []func(ctx context.Context)

	feed := interfaces.NewEventFeed()
	publishers := []port.EventPublisher{feed}
	if cfg.Kafka.Enabled {
		kafkaPublisher := infrastructure.NewKafkaEventPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		publishers = append(publishers, kafkaPublisher)
		shutdown = append(shutdown, func(context.Context) { _ = kafkaPublisher.Close() })
	}

	var guard interfaces.IdempotencyGuard
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		guard = infrastructure.NewRedisIdempotencyGuard(redisClient, cfg.Order.IdempotencyTTL)
		shutdown = append(shutdown, func(context.Context) { _ = redisClient.Close() })
	}

	var orderLock port.OrderLock = infrastructure.NewKeyedMutex()
	if cfg.Zookeeper.Enabled {
		zkLock, err := infrastructure.NewZkOrderLock(cfg.Zookeeper.Servers, 10*time.Second)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to connect zookeeper")
		}
		orderLock = zkLock
		shutdown = append(shutdown, func(context.Context) { zkLock.Close() })
	}

	bootstrap.StartService(bootstrap.AppInfo{
		Config:     cfg,
		OnShutdown: append(shutdown, func(context.Context) { feed.Close() }),
		RegisterHandlers: func(appCtx bootstrap.AppCtx) {
			var resolver httpclient.Resolver = staticResolver
			if appCtx.Nacos != nil {
				resolver = appCtx.Nacos
			}
			client := httpclient.NewClient(tracer, resolver)

			users := adapter.NewUserHTTPAdapter(client, cfg.Services.UserServiceName)
			catalog := adapter.NewCatalogHTTPAdapter(client, cfg.Services.ProductServiceName)
			stock := application.NewStockCoordinator(catalog, m)

			service := application.NewOrderService(repo, users, stock, tracer, application.Options{
				Rules:           rules,
				Publisher:       fanoutPublisher(publishers),
				Lock:            orderLock,
				Metrics:         m,
				ReserveOnCreate: cfg.Order.ReserveOnCreate,
			})

			handler := interfaces.NewOrderHandler(service, guard, feed, m)
			handler.RegisterRoutes(appCtx.Mux)
		},
	})
}

// fanoutPublisher 把一个事件依次交给全部发布器，任何一个失败不阻断其余。
type fanoutPublisher []port.EventPublisher

func (f fanoutPublisher) Publish(ctx context.Context, event domain.Event) error {
	var firstErr error
	for _, p := range f {
		if err := p.Publish(ctx, event); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
