package httpclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// ErrNotFound 标记协作方返回 404。调用方据此区分"不存在"与传输失败。
var ErrNotFound = errors.New("httpclient: resource not found")

// Resolver 把逻辑服务名解析为基地址，实现可以是静态配置或注册中心。
type Resolver interface {
	Resolve(service string) (string, error)
}

// StaticResolver 是固定地址表实现，地址缺失视为配置错误。
type StaticResolver map[string]string

func (r StaticResolver) Resolve(service string) (string, error) {
	if base, ok := r[service]; ok && base != "" {
		return base, nil
	}
	return "", fmt.Errorf("no address configured for service %q", service)
}

// Client 是一个可追踪的、可注入的 HTTP 客户端。
// 不设置全局 Timeout，超时完全受每次请求传入的 context 控制。
type Client struct {
	tracer     trace.Tracer
	resolver   Resolver
	httpClient *http.Client
}

// NewClient 创建客户端实例，复用底层连接池。
func NewClient(tracer trace.Tracer, resolver Resolver) *Client {
	return &Client{
		tracer:   tracer,
		resolver: resolver,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
		},
	}
}

// GetJSON 向 service 的 path 发起 GET，并把 200 响应解码进 out。
// 404 返回 ErrNotFound；其余非 2xx 状态码与传输错误原样上抛。
func (c *Client) GetJSON(ctx context.Context, service, path string, query url.Values, out interface{}) error {
	base, err := c.resolver.Resolve(service)
	if err != nil {
		return err
	}

	target, err := url.Parse(strings.TrimRight(base, "/") + path)
	if err != nil {
		return err
	}
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("call-%s", service), trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.url", target.String()),
		attribute.String("http.method", http.MethodGet),
		attribute.String("peer.service", service),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		span.RecordError(err)
		return err
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// 丢弃响应体，只保留状态码信息
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		err := fmt.Errorf("service %s returned status %s", service, resp.Status)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		span.RecordError(err)
		return fmt.Errorf("decode response from %s: %w", service, err)
	}
	return nil
}
