// internal/pkg/redis/client.go
package redis

import (
	"context"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Client 是 go-redis 的薄封装，只暴露本项目需要的操作。
type Client struct {
	rdb *goredis.Client
}

// NewClient 连接单节点 redis 并做一次连通性检查。
func NewClient(addr string) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{Addr: addr})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Client{rdb: rdb}, nil
}

// SetMarkNX 设置一个抑制标记，返回是否是首次设置。
// ttl 为 0 时标记永不过期。
func (c *Client) SetMarkNX(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, "1", ttl).Result()
}

// Close 关闭连接。
func (c *Client) Close() error {
	return c.rdb.Close()
}
