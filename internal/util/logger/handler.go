package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/dep2p/go-carrier/pkg/types"
)

var (
	// globalOutput 全局日志输出目标，默认为 stderr
	globalOutput   io.Writer = os.Stderr
	globalOutputMu sync.RWMutex
)

// dynamicWriter 是一个动态查找 globalOutput 的 io.Writer
// 这样即使在 logger 创建后修改 globalOutput，也能生效
type dynamicWriter struct{}

func (w *dynamicWriter) Write(p []byte) (n int, err error) {
	globalOutputMu.RLock()
	output := globalOutput
	globalOutputMu.RUnlock()
	return output.Write(p)
}

// subsystemHandler 子系统 Handler
//
// 同时持有文本与 JSON 两个输出，按当前格式选择；派生出的 Handler
// 共享同一个 LevelVar，Configure 对它们同样生效。
type subsystemHandler struct {
	level *slog.LevelVar
	text  slog.Handler
	json  slog.Handler
}

func newHandler(subsystem string, level slog.Level) *subsystemHandler {
	lv := new(slog.LevelVar)
	lv.Set(level)

	opts := &slog.HandlerOptions{
		Level:       lv,
		ReplaceAttr: replaceAttr,
	}
	output := &dynamicWriter{}
	attrs := []slog.Attr{slog.String("subsystem", subsystem)}

	return &subsystemHandler{
		level: lv,
		text:  slog.NewTextHandler(output, opts).WithAttrs(attrs),
		json:  slog.NewJSONHandler(output, opts).WithAttrs(attrs),
	}
}

func (h *subsystemHandler) inner() slog.Handler {
	if LogFormat(format.Load()) == FormatJSON {
		return h.json
	}
	return h.text
}

// Enabled 检查是否启用指定级别
func (h *subsystemHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

// Handle 处理日志记录
func (h *subsystemHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner().Handle(ctx, r)
}

// WithAttrs 添加属性
func (h *subsystemHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &subsystemHandler{
		level: h.level,
		text:  h.text.WithAttrs(attrs),
		json:  h.json.WithAttrs(attrs),
	}
}

// WithGroup 添加组
func (h *subsystemHandler) WithGroup(name string) slog.Handler {
	return &subsystemHandler{
		level: h.level,
		text:  h.text.WithGroup(name),
		json:  h.json.WithGroup(name),
	}
}

// replaceAttr 统一时间与级别键，身份渲染为短 Base58
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "ts"
		return a
	case slog.LevelKey:
		if lvl, ok := a.Value.Any().(slog.Level); ok {
			a.Value = slog.StringValue(levelToString(lvl))
		}
		return a
	}
	if a.Value.Kind() == slog.KindAny {
		switch v := a.Value.Any().(type) {
		case types.Identity:
			a.Value = slog.StringValue(v.ShortString())
		case []types.Path:
			a.Value = slog.IntValue(len(v))
		}
	}
	return a
}

// levelToString 将日志级别转换为小写字符串
func levelToString(level slog.Level) string {
	switch level {
	case slog.LevelDebug:
		return "debug"
	case slog.LevelInfo:
		return "info"
	case slog.LevelWarn:
		return "warn"
	case slog.LevelError:
		return "error"
	default:
		return "info"
	}
}

// discardHandler 丢弃所有日志的 Handler（用于测试）
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// DiscardHandler 返回一个丢弃所有日志的 Handler
func DiscardHandler() slog.Handler {
	return discardHandler{}
}

