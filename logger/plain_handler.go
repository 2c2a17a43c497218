package logger

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// plainTextHandler 实现普通文本格式的日志处理器
type plainTextHandler struct {
	opts   slog.HandlerOptions
	mu     *sync.Mutex
	out    io.Writer
	attrs  []slog.Attr
	groups []string
}

// newPlainTextHandler 创建普通文本格式的日志处理器
func newPlainTextHandler(out io.Writer, opts *slog.HandlerOptions) *plainTextHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}
	return &plainTextHandler{
		opts: *opts,
		mu:   &sync.Mutex{},
		out:  out,
	}
}

// Enabled 检查日志级别是否启用
func (h *plainTextHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= h.opts.Level.Level()
}

// Handle 处理日志记录
func (h *plainTextHandler) Handle(ctx context.Context, r slog.Record) error {
	var buf bytes.Buffer

	// 格式：[时间] [级别] [组] 消息 k=v ...
	buf.WriteString(r.Time.Format("2006/01/02 15:04:05.000"))

	buf.WriteString(" ")
	buf.WriteString(r.Level.String())
	buf.WriteString(" ")

	if len(h.groups) > 0 {
		buf.WriteString("[")
		buf.WriteString(strings.Join(h.groups, "."))
		buf.WriteString("] ")
	}

	buf.WriteString(r.Message)

	writeAttr := func(a slog.Attr) {
		buf.WriteString(" ")
		buf.WriteString(a.Key)
		buf.WriteString("=")
		buf.WriteString(a.Value.String())
	}

	for _, a := range h.attrs {
		writeAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(a)
		return true
	})

	buf.WriteString("\n")

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := h.out.Write(buf.Bytes())
	return err
}

// WithAttrs 返回带有额外属性的处理器
func (h *plainTextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &plainTextHandler{
		opts:   h.opts,
		mu:     h.mu,
		out:    h.out,
		attrs:  append(append([]slog.Attr{}, h.attrs...), attrs...),
		groups: h.groups,
	}
}

// WithGroup 返回带有组的处理器
func (h *plainTextHandler) WithGroup(name string) slog.Handler {
	return &plainTextHandler{
		opts:   h.opts,
		mu:     h.mu,
		out:    h.out,
		attrs:  h.attrs,
		groups: append(append([]string{}, h.groups...), name),
	}
}
