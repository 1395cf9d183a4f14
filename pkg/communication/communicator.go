package communication

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// RawMessage 发送给 can-bridge 服务的原始 CAN 帧
type RawMessage struct {
	Interface string `json:"interface"` // 目标 CAN 接口名，例如 "can0", "vcan1"
	ID        uint32 `json:"id"`        // CAN 帧的 ID
	Data      []byte `json:"data"`      // CAN 帧的数据负载，最多 8 字节
}

// Communicator 定义了与 can-bridge Web 服务进行通信的接口
type Communicator interface {
	// SendMessage 将 RawMessage 通过 HTTP POST 请求发送到 can-bridge 服务
	SendMessage(ctx context.Context, msg RawMessage) error

	// GetInterfaceStatus 获取指定 CAN 接口的状态
	GetInterfaceStatus(ctx context.Context, ifName string) (isActive bool, err error)
}

// CanBridgeClient 实现与 can-bridge 服务的 HTTP 通信
type CanBridgeClient struct {
	serviceURL string
	client     *http.Client
}

// NewCanBridgeClient 创建客户端。单次请求的超时由调用方的 context 控制，
// http.Client 的超时只作为兜底。
func NewCanBridgeClient(serviceURL string) *CanBridgeClient {
	return &CanBridgeClient{
		serviceURL: serviceURL,
		client: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

func (c *CanBridgeClient) SendMessage(ctx context.Context, msg RawMessage) error {
	if len(msg.Data) > 8 {
		return fmt.Errorf("CAN 帧数据过长：%d 字节", len(msg.Data))
	}
	jsonData, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("序列化消息失败：%w", err)
	}

	url := fmt.Sprintf("%s/api/can", c.serviceURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("创建 HTTP 请求失败：%w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("发送 HTTP 请求失败：%w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("can-bridge服务返回错误: %d, %s", resp.StatusCode, string(body))
	}

	return nil
}

func (c *CanBridgeClient) GetInterfaceStatus(ctx context.Context, ifName string) (bool, error) {
	var status struct {
		Active bool `json:"active"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("%s/api/status/%s", c.serviceURL, ifName), &status); err != nil {
		return false, fmt.Errorf("获取接口状态失败：%w", err)
	}
	return status.Active, nil
}

func (c *CanBridgeClient) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("can-bridge 服务返回错误：%d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("解析状态响应失败：%w", err)
	}
	return nil
}
