package retention

import "time"

type ErrorHandler func(err error)

type Config struct {
	// Enabled 控制后台定时清理是否启用。
	Enabled bool `mapstructure:"enabled"`
	// Interval 为清理周期。
	Interval time.Duration `mapstructure:"interval"`
	// KeepDays 为核查记录与审计记录的保留天数，早于该时间的记录会被删除。
	KeepDays int `mapstructure:"keep_days"`
	// BatchRows 为单次删除的最大行数，分批删除避免长时间锁表。
	BatchRows int `mapstructure:"batch_rows"`
	// IdleSleep 为两批删除之间的等待时间。
	IdleSleep time.Duration `mapstructure:"idle_sleep"`
	// MaxAuditRows 大于 0 时审计表最多保留最近的 N 条。
	MaxAuditRows int `mapstructure:"max_audit_rows"`

	// OnError 为异步错误回调；默认丢弃。
	OnError ErrorHandler `mapstructure:"-"`
}

func DefaultConfig() Config {
	return Config{
		Enabled:   true,
		Interval:  1 * time.Hour,
		KeepDays:  30,
		BatchRows: 500,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.KeepDays <= 0 {
		c.KeepDays = d.KeepDays
	}
	if c.BatchRows <= 0 {
		c.BatchRows = d.BatchRows
	}
	if c.OnError == nil {
		c.OnError = func(error) {}
	}
	return c
}

// Cutoff 返回早于该时间即应删除的时间点
func (c Config) Cutoff(now time.Time) time.Time {
	return now.AddDate(0, 0, -c.withDefaults().KeepDays)
}
