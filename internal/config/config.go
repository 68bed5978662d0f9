package config

import (
	"errors"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	Server      struct {
		Port            string `env:"PORT" envDefault:"3000"`
		ReadTimeout     int    `env:"READ_TIMEOUT" envDefault:"10"`
		WriteTimeout    int    `env:"WRITE_TIMEOUT" envDefault:"15"`
		IdleTimeout     int    `env:"IDLE_TIMEOUT" envDefault:"60"`
		ShutdownTimeout int    `env:"SHUTDOWN_TIMEOUT" envDefault:"10"`
	} `envPrefix:"SERVER_"`
	Database struct {
		DSN            string `env:"DSN,required"`
		ConnectTimeout int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		QueryTimeout   int    `env:"QUERY_TIMEOUT" envDefault:"10"`
		// 认领事务会跨越一次对 NGRS 的调用，所以这里必须大于 NGRS 的请求超时
		TransactionTimeout int `env:"TRANSACTION_TIMEOUT" envDefault:"60"`
		MaxOpenConns       int `env:"MAX_OPEN_CONNS" envDefault:"10"`
		MaxIdleConns       int `env:"MAX_IDLE_CONNS" envDefault:"10"`
		MaxIdleTime        int `env:"MAX_IDLE_TIME" envDefault:"60"`
	} `envPrefix:"DATABASE_"`
	NGRS struct {
		ClockingURL string `env:"CLOCKING_URL,required"`
		// 留空表示不启用定时拉取，只能通过上传 roster 文件来模拟
		RosterURL      string `env:"ROSTER_URL"`
		APIKey         string `env:"API_KEY"`
		RequestTimeout int    `env:"REQUEST_TIMEOUT" envDefault:"30"`
		DeviceID       string `env:"DEVICE_ID" envDefault:"SIM-10.0.0.5"`
		SendFrom       string `env:"SEND_FROM" envDefault:"titusSimulator"`
	} `envPrefix:"NGRS_"`
	Simulation struct {
		Timezone string `env:"TIMEZONE" envDefault:"Asia/Singapore"`
		// 实时模式下，打卡时间距离现在不超过这个分钟数的事件才会被发送
		RealtimeWindow int `env:"REALTIME_WINDOW" envDefault:"15"`
		// 过期事件的补发上限（分钟），超过这个时间的事件不再补发
		// TODO: 默认 24 小时是暂定的，具体补发多久要和 NGRS 那边确认
		OverdueLookback int `env:"OVERDUE_LOOKBACK" envDefault:"1440"`
		PollInterval    int `env:"POLL_INTERVAL" envDefault:"60"`
	} `envPrefix:"SIMULATION_"`
	Retention struct {
		EventDays     int `env:"EVENT_DAYS" envDefault:"2"`
		RosterDays    int `env:"ROSTER_DAYS" envDefault:"7"`
		SweepInterval int `env:"SWEEP_INTERVAL" envDefault:"24"` // 小时
	} `envPrefix:"RETENTION_"`
	Redis struct {
		Host                string `env:"HOST" envDefault:"localhost"`
		Port                int    `env:"PORT" envDefault:"6379"`
		Password            string `env:"PASSWORD,required"`
		ConnectTimeout      int    `env:"CONNECT_TIMEOUT" envDefault:"10"`
		OperationExpiration int    `env:"OPERATION_EXPIRATION" envDefault:"10"`
		RunGuardExpiration  int    `env:"RUN_GUARD_EXPIRATION" envDefault:"600"` // 10 分钟
	} `envPrefix:"REDIS_"`
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		aggErr := env.AggregateError{}
		if ok := errors.As(err, &aggErr); ok {
			// 只返回第一个错误使得日志更清晰
			return nil, aggErr.Errors[0]
		}
	}

	return cfg, nil
}
