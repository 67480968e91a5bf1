package adapter

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/pkg/errors"

	"orderhub/internal/pkg/httpclient"
	"orderhub/internal/service/order/port"
)

// CatalogHTTPAdapter 实现 port.ProductCatalog，经 HTTP 访问商品服务。
// 三个库存端点都返回 JSON 布尔值，布尔语义属于商品侧，传输失败以错误上抛。
type CatalogHTTPAdapter struct {
	client  *httpclient.Client
	service string
}

func NewCatalogHTTPAdapter(client *httpclient.Client, serviceName string) *CatalogHTTPAdapter {
	return &CatalogHTTPAdapter{client: client, service: serviceName}
}

// GetProduct 查询商品。404 映射为 (nil, nil)。
func (a *CatalogHTTPAdapter) GetProduct(ctx context.Context, id int64) (*port.Product, error) {
	var product port.Product
	err := a.client.GetJSON(ctx, a.service, fmt.Sprintf("/api/products/%d", id), nil, &product)
	if errors.Is(err, httpclient.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (a *CatalogHTTPAdapter) CheckStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	return a.stockCall(ctx, productID, "check-stock", quantity)
}

func (a *CatalogHTTPAdapter) ReduceStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	return a.stockCall(ctx, productID, "reduce-stock", quantity)
}

func (a *CatalogHTTPAdapter) IncreaseStock(ctx context.Context, productID int64, quantity int) (bool, error) {
	return a.stockCall(ctx, productID, "increase-stock", quantity)
}

func (a *CatalogHTTPAdapter) stockCall(ctx context.Context, productID int64, op string, quantity int) (bool, error) {
	query := url.Values{}
	query.Set("quantity", strconv.Itoa(quantity))

	var result bool
	err := a.client.GetJSON(ctx, a.service, fmt.Sprintf("/api/products/%d/%s", productID, op), query, &result)
	if err != nil {
		return false, errors.Wrapf(err, "%s for product %d", op, productID)
	}
	return result, nil
}
