package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Duration 可写成 "30s" 或秒数的时长
//
// 配置文件里的超时与窗口都用它表示：
//
//	{"handshake": {"freshness_window": "30s", "timeout": 10}}
//
// 输出总是字符串形式。负数时长被拒绝。
type Duration time.Duration

// ErrNegativeDuration 时长为负
var ErrNegativeDuration = errors.New("duration must not be negative")

// UnmarshalJSON 实现 json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	var parsed time.Duration
	switch x := v.(type) {
	case string:
		p, err := time.ParseDuration(x)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", x, err)
		}
		parsed = p
	case float64:
		if x > math.MaxInt64/float64(time.Second) {
			return fmt.Errorf("duration %v seconds out of range", x)
		}
		parsed = time.Duration(x * float64(time.Second))
	default:
		return fmt.Errorf("duration must be a string like \"30s\" or a number of seconds, got %s", data)
	}
	if parsed < 0 {
		return fmt.Errorf("%w: %s", ErrNegativeDuration, parsed)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 返回 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
