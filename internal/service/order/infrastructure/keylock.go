package infrastructure

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const zkLockRoot = "/orderhub/locks/orders"

// KeyedMutex 是 port.OrderLock 的进程内实现，按订单号串行化变更。
// 单实例部署或未配置 ZooKeeper 时使用。
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[int64]*entry
}

type entry struct {
	mu   sync.Mutex
	refs int
}

func NewKeyedMutex() *KeyedMutex {
	return &KeyedMutex{locks: make(map[int64]*entry)}
}

// Acquire 阻塞直到持有 orderID 的互斥量。引用计数保证空闲条目被回收。
func (k *KeyedMutex) Acquire(ctx context.Context, orderID int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	k.mu.Lock()
	e, ok := k.locks[orderID]
	if !ok {
		e = &entry{}
		k.locks[orderID] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	var once sync.Once
	release := func() {
		once.Do(func() {
			e.mu.Unlock()
			k.mu.Lock()
			e.refs--
			if e.refs == 0 {
				delete(k.locks, orderID)
			}
			k.mu.Unlock()
		})
	}
	return release, nil
}

// ZkOrderLock 用 ZooKeeper 临时顺序节点实现跨实例的订单锁，
// 多副本部署时保证同一订单的读-改-写不会交错。
type ZkOrderLock struct {
	conn *zk.Conn
}

// NewZkOrderLock 建立 ZooKeeper 连接。sessionTimeout 同时决定实例崩溃后
// 锁节点被摘除的最长延迟。
func NewZkOrderLock(servers []string, sessionTimeout time.Duration) (*ZkOrderLock, error) {
	if sessionTimeout <= 0 {
		sessionTimeout = 10 * time.Second
	}
	conn, _, err := zk.Connect(servers, sessionTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "connect zookeeper")
	}
	return &ZkOrderLock{conn: conn}, nil
}

// Acquire 在 /orderhub/locks/orders/<id> 下竞争锁。
func (z *ZkOrderLock) Acquire(ctx context.Context, orderID int64) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/%d", zkLockRoot, orderID)
	lock := zk.NewLock(z.conn, path, zk.WorldACL(zk.PermAll))

	acquired := make(chan error, 1)
	go func() { acquired <- lock.Lock() }()

	select {
	case err := <-acquired:
		if err != nil {
			return nil, errors.Wrapf(err, "acquire zk lock for order %d", orderID)
		}
	case <-ctx.Done():
		// 锁可能仍会在后台拿到，确保最终被释放
		go func() {
			if err := <-acquired; err == nil {
				_ = lock.Unlock()
			}
		}()
		return nil, ctx.Err()
	}

	var once sync.Once
	release := func() {
		once.Do(func() { _ = lock.Unlock() })
	}
	return release, nil
}

func (z *ZkOrderLock) Close() {
	z.conn.Close()
}
