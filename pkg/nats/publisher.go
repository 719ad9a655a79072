// 文件: pkg/nats/publisher.go
// NATS 消息发布者
//
// 资金流水管道的轻量级传输: 本地开发不起 Kafka 时，
// fund 的流水事件和余额快照通过这里发往冷端写入器，
// subject 即 fund 的 Topic 常量

package nats

import (
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
)

// Publisher NATS 发布者
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher 创建发布者
func NewPublisher(url string) (*Publisher, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	return &Publisher{conn: conn}, nil
}

// Publish 发布消息 (JSON 序列化)
// 序列化失败说明事件结构本身有问题，直接上抛
func (p *Publisher) Publish(subject string, data any) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return p.conn.Publish(subject, bytes)
}

// PublishRaw 发布已序列化的消息体
func (p *Publisher) PublishRaw(subject string, data []byte) error {
	return p.conn.Publish(subject, data)
}

// Close 关闭连接
func (p *Publisher) Close() {
	p.conn.Close()
}
