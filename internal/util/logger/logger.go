// Package logger 提供 carrier 的统一日志系统
//
// 基于标准库 log/slog，每个子系统一个 Logger：
//
//	var log = logger.Logger("routetable")
//
//	log.Debug("路由已建立", "identity", id, "route", handle)
//
// 初始级别与格式来自 CARRIER_LOG_LEVEL / CARRIER_LOG_FORMAT，
// broker 启动后用配置文件或命令行的值调用 Configure，
// 已创建的 Logger 立即生效。types.Identity 属性输出为短 Base58。
package logger

import (
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

var (
	// loggers 缓存各子系统的 Logger
	loggers sync.Map // map[string]*slog.Logger

	// handlers 各子系统的 Handler，Configure 通过它调整级别
	handlers sync.Map // map[string]*subsystemHandler

	activeMu sync.Mutex
	active   = FromEnv(os.Getenv)

	// format 当前输出格式，所有 Handler 共享
	format atomic.Int32
)

func init() {
	format.Store(int32(active.Format))
}

// Logger 获取指定子系统的 Logger
//
// 同一子系统多次调用返回同一实例。
func Logger(subsystem string) *slog.Logger {
	if l, ok := loggers.Load(subsystem); ok {
		return l.(*slog.Logger)
	}

	activeMu.Lock()
	level := active.LevelFor(subsystem)
	activeMu.Unlock()

	h := newHandler(subsystem, level)
	actual, loaded := loggers.LoadOrStore(subsystem, slog.New(h))
	if !loaded {
		handlers.Store(subsystem, h)
	}
	return actual.(*slog.Logger)
}

// Configure 调整级别与格式，空字符串表示保持当前值
//
// levels 的格式与 CARRIER_LOG_LEVEL 相同。出错时不做任何修改。
func Configure(levels, formatName string) error {
	activeMu.Lock()
	defer activeMu.Unlock()

	next := active.clone()
	if levels != "" {
		if err := next.SetLevels(levels); err != nil {
			return err
		}
	}
	if formatName != "" {
		f, err := ParseFormat(formatName)
		if err != nil {
			return err
		}
		next.Format = f
	}

	active = next
	format.Store(int32(next.Format))
	handlers.Range(func(key, value any) bool {
		value.(*subsystemHandler).level.Set(next.LevelFor(key.(string)))
		return true
	})
	return nil
}

// Current 返回当前生效配置的副本
func Current() *Config {
	activeMu.Lock()
	defer activeMu.Unlock()
	return active.clone()
}

// Discard 返回一个丢弃所有日志的 Logger
func Discard() *slog.Logger {
	return slog.New(DiscardHandler())
}

// SetOutput 设置日志输出目标，已创建的 Logger 同样重定向
func SetOutput(w io.Writer) {
	globalOutputMu.Lock()
	globalOutput = w
	globalOutputMu.Unlock()
}

// FxEventLogger 返回 fx 内部事件的日志记录器
//
// fx 的启动事件对运行无用，统一丢弃。
func FxEventLogger() fxevent.Logger {
	return &fxevent.ZapLogger{Logger: zap.NewNop()}
}
