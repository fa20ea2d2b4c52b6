package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/life-stream-dev/life-stream-go-mqtt-client/internal/logger"
)

// ParseStringTime 解析形如 "15s" / "5m" / "1h" / "7d" 的时长配置
// 无法解析时返回0并记录错误
func ParseStringTime(timeString string) time.Duration {
	timeString = strings.ToLower(strings.TrimSpace(timeString))
	if timeString == "" {
		return 0
	}

	units := []struct {
		suffix string
		unit   time.Duration
	}{
		{"s", time.Second},
		{"m", time.Minute},
		{"h", time.Hour},
		{"d", 24 * time.Hour},
	}

	for _, u := range units {
		if cutString, _, found := strings.Cut(timeString, u.suffix); found {
			number, err := strconv.Atoi(cutString)
			if err != nil {
				logger.ErrorF("Error parsing time string: %s", err.Error())
				return 0
			}
			return time.Duration(number) * u.unit
		}
	}

	logger.ErrorF("invalid time format: %s", timeString)
	return 0
}

// ParseStringTimeDefault 解析时长配置，为空或非法时使用默认值
func ParseStringTimeDefault(timeString string, fallback time.Duration) time.Duration {
	if parsed := ParseStringTime(timeString); parsed > 0 {
		return parsed
	}
	return fallback
}
