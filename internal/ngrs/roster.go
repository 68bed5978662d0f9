package ngrs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
)

// RosterClient 负责从 NGRS 按日期范围拉取排班数据
type RosterClient struct {
	cfg    *config.Config
	client *http.Client
	loc    *time.Location
}

func NewRosterClient(cfg *config.Config, loc *time.Location) *RosterClient {
	return &RosterClient{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.NGRS.RequestTimeout) * time.Second,
		},
		loc: loc,
	}
}

// FetchRoster 拉取 [from, to] 日期范围内的排班并解析成 Assignment。
// 解析失败的记录不会中断整个拉取，第二个返回值是被跳过的记录数。
func (c *RosterClient) FetchRoster(ctx context.Context, from time.Time, to time.Time) ([]*domain.Assignment, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.NGRS.RosterURL, nil)
	if err != nil {
		return nil, 0, err
	}

	params := url.Values{}
	params.Set("from", from.Format("2006-01-02"))
	params.Set("to", to.Format("2006-01-02"))
	req.URL.RawQuery = params.Encode()

	if c.cfg.NGRS.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.NGRS.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyLength))
		return nil, 0, fmt.Errorf("NGRS 排班接口返回 %d: %s", resp.StatusCode, excerpt)
	}

	envelope := &domain.RawRosterEnvelope{}
	if err := json.NewDecoder(resp.Body).Decode(envelope); err != nil {
		return nil, 0, fmt.Errorf("无法解析 NGRS 排班响应: %w", err)
	}

	assignments := make([]*domain.Assignment, 0)
	skipped := 0
	for _, metadata := range envelope.Results() {
		assignment, err := domain.AssignmentFromRaw(&metadata, c.loc)
		if err != nil {
			slog.Warn("跳过无法解析的排班记录", "error", err)
			skipped++
			continue
		}
		assignments = append(assignments, assignment)
	}

	return assignments, skipped, nil
}
