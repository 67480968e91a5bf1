package adapter

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"orderhub/internal/pkg/httpclient"
	"orderhub/internal/service/order/port"
)

// UserHTTPAdapter 实现 port.UserDirectory，经 HTTP 查询用户服务。
// 用户记录随取随用，从不缓存。
type UserHTTPAdapter struct {
	client  *httpclient.Client
	service string
}

func NewUserHTTPAdapter(client *httpclient.Client, serviceName string) *UserHTTPAdapter {
	return &UserHTTPAdapter{client: client, service: serviceName}
}

// GetUser 查询用户。404 映射为 (nil, nil)，传输失败原样上抛由编排层包装。
func (a *UserHTTPAdapter) GetUser(ctx context.Context, id int64) (*port.User, error) {
	var user port.User
	err := a.client.GetJSON(ctx, a.service, fmt.Sprintf("/api/users/%d", id), nil, &user)
	if errors.Is(err, httpclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
