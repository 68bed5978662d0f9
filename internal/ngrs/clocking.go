// Package ngrs 封装对 NGRS 两个接口的调用：逐条发送打卡事件、按日期拉取排班。
package ngrs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

// 出错时最多读取这么多响应内容放进错误信息
const maxErrorBodyLength = 512

// ClockingClient 负责把模拟出来的打卡事件发送到 NGRS 打卡接口
type ClockingClient struct {
	cfg    *config.Config
	client *http.Client
}

func NewClockingClient(cfg *config.Config) *ClockingClient {
	return &ClockingClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.NGRS.RequestTimeout) * time.Second,
		},
	}
}

// Send 发送单个打卡事件，NGRS 的打卡接口不支持批量提交。
// 任何网络错误或非 2xx 响应都视为发送失败，由调用方决定是否在下一次运行时重试。
func (c *ClockingClient) Send(ctx context.Context, event *domain.ClockEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.NGRS.ClockingURL, bytes.NewReader(body))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")
	if c.cfg.NGRS.APIKey != "" {
		req.Header.Set("x-api-key", c.cfg.NGRS.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return fmt.Errorf("NGRS 打卡接口返回 %d: %s", resp.StatusCode, excerpt)
	}

	// 读完响应体让连接可以被复用
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
