package bootstrap

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"orderhub/internal/pkg/nacos"
	"orderhub/internal/pkg/tracing"
)

// AppCtx 传递给路由注册回调的运行时组件。
type AppCtx struct {
	Mux   *http.ServeMux
	Nacos *nacos.Client
}

// AppInfo 描述启动一个服务所需的信息。
type AppInfo struct {
	Config           *Config
	RegisterHandlers func(appCtx AppCtx)
	// OnShutdown 在 HTTP 服务器关闭前按注册顺序执行，用于释放外部连接。
	OnShutdown []func(ctx context.Context)
}

// StartService 封装通用的启动与优雅关停流程：
// tracer -> nacos 注册（可选）-> HTTP 服务 -> 信号等待 -> 逆序清理。
func StartService(info AppInfo) {
	cfg := info.Config

	tp, err := tracing.InitTracerProvider(cfg.Service.Name, cfg.Jaeger.Endpoint)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer provider")
	}

	var namingClient *nacos.Client
	var selfIP string
	if cfg.Nacos.Enabled {
		namingClient, err = nacos.NewClient(cfg.Nacos.ServerAddrs, cfg.Nacos.Namespace, cfg.Nacos.Group)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize nacos client")
		}
		selfIP, err = outboundIP()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get outbound IP address")
		}
		if err := namingClient.RegisterServiceInstance(cfg.Service.Name, selfIP, cfg.Service.Port); err != nil {
			log.Fatal().Err(err).Msg("failed to register service with nacos")
		}
	}

	mux := http.NewServeMux()
	if info.RegisterHandlers != nil {
		info.RegisterHandlers(AppCtx{Mux: mux, Nacos: namingClient})
	}
	server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Service.Port), Handler: mux}

	go func() {
		log.Info().Str("addr", server.Addr).Msgf("%s listening", cfg.Service.Name)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msgf("shutting down %s", cfg.Service.Name)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if namingClient != nil {
		if err := namingClient.DeregisterServiceInstance(cfg.Service.Name, selfIP, cfg.Service.Port); err != nil {
			log.Error().Err(err).Msg("error deregistering from nacos")
		}
	}

	for _, fn := range info.OnShutdown {
		fn(ctx)
	}

	if err := tp.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down tracer provider")
	}
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("error shutting down http server")
	}
	log.Info().Msgf("%s gracefully shut down", cfg.Service.Name)
}

// outboundIP 取本机对外 IP，用于注册中心上报。
func outboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", err
	}
	defer conn.Close()
	return conn.LocalAddr().(*net.UDPAddr).IP.String(), nil
}
