package ngrs

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sgsec-dev/titus-simulator/internal/config"
	"github.com/sgsec-dev/titus-simulator/internal/domain"
	"github.com/stretchr/testify/require"
)

func testEvent() *domain.ClockEvent {
	assignment := &domain.Assignment{
		DeploymentItemID: "0000335830",
		PersonnelID:      "00037056",
		Plant:            "5000",
	}
	clockedAt := time.Date(2026, 1, 1, 10, 12, 0, 0, time.UTC)
	return domain.NewClockEvent(assignment, domain.ClockIn, clockedAt, "SIM-10.0.0.5", "titusSimulator")
}

func TestClockingClientSend(t *testing.T) {
	var gotHeader http.Header
	var gotBody []byte

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.NGRS.ClockingURL = server.URL
	cfg.NGRS.APIKey = "secret-key"
	cfg.NGRS.RequestTimeout = 5

	event := testEvent()
	err := NewClockingClient(cfg).Send(context.Background(), event)
	require.NoError(t, err)

	require.Equal(t, "application/json", gotHeader.Get("Content-Type"))
	require.Equal(t, "secret-key", gotHeader.Get("x-api-key"))

	// 字段名要和 NGRS 的接口定义完全一致
	require.Contains(t, string(gotBody), `"ClockedDeviceId"`)
	require.Contains(t, string(gotBody), `"PersonnelId"`)
	require.Contains(t, string(gotBody), `"ClockingId"`)

	received := &domain.ClockEvent{}
	require.NoError(t, json.Unmarshal(gotBody, received))
	require.Equal(t, event, received)
	require.Equal(t, "20260101101200", received.ClockedDateTime)
}

func TestClockingClientSendWithoutAPIKey(t *testing.T) {
	var gotHeader http.Header

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.NGRS.ClockingURL = server.URL
	cfg.NGRS.RequestTimeout = 5

	err := NewClockingClient(cfg).Send(context.Background(), testEvent())
	require.NoError(t, err)

	_, hasKey := gotHeader["X-Api-Key"]
	require.False(t, hasKey)
}

func TestClockingClientSendServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("clocking rejected"))
	}))
	defer server.Close()

	cfg := &config.Config{}
	cfg.NGRS.ClockingURL = server.URL
	cfg.NGRS.RequestTimeout = 5

	err := NewClockingClient(cfg).Send(context.Background(), testEvent())
	require.Error(t, err)
	require.ErrorContains(t, err, "500")
	require.ErrorContains(t, err, "clocking rejected")
}
