package port

import (
	"context"

	"github.com/shopspring/decimal"

	"orderhub/internal/service/order/domain"
)

// User 是用户服务返回的只读视图，随取随用，不在本服务落地。
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Product 是商品服务返回的只读视图，Price 与 Stock 以响应时刻为准。
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

// UserDirectory 是用户服务的出站端口。
// 用户不存在时返回 (nil, nil)，传输失败返回错误。
type UserDirectory interface {
	GetUser(ctx context.Context, id int64) (*User, error)
}

// ProductCatalog 是商品服务的出站端口，含库存操作。
// 三个库存操作各自是一次独立失败域的网络往返，布尔返回值来自商品侧，
// 传输失败以错误形式上抛，由调用方决定中止还是容忍。
type ProductCatalog interface {
	GetProduct(ctx context.Context, id int64) (*Product, error)
	CheckStock(ctx context.Context, productID int64, quantity int) (bool, error)
	ReduceStock(ctx context.Context, productID int64, quantity int) (bool, error)
	IncreaseStock(ctx context.Context, productID int64, quantity int) (bool, error)
}

// EventPublisher 是生命周期事件的出站端口，实现必须可安全并发调用。
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// OrderLock 按订单号串行化读-改-写，避免并发更新交错产生部分写。
type OrderLock interface {
	// Acquire 阻塞直到持有 orderID 的锁，返回释放函数。
	Acquire(ctx context.Context, orderID int64) (release func(), err error)
}
