package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"
)

type logFormat int

const (
	formatJSON logFormat = iota
	formatKV
)

type handlerConfig struct {
	level    slog.Leveler
	writer   *asyncWriter
	format   logFormat
	keyOrder []string
}

// structuredHandler renders records as single-line KV or JSON output with a
// stable key order so log streams stay grep- and diff-friendly.
type structuredHandler struct {
	cfg   handlerConfig
	rank  map[string]int
	attrs []slog.Attr
}

func newStructuredHandler(cfg handlerConfig) *structuredHandler {
	rank := make(map[string]int, len(cfg.keyOrder))
	for i, key := range cfg.keyOrder {
		rank[key] = i
	}
	return &structuredHandler{cfg: cfg, rank: rank}
}

func (h *structuredHandler) Enabled(_ context.Context, level slog.Level) bool {
	min := slog.LevelInfo
	if h.cfg.level != nil {
		min = h.cfg.level.Level()
	}
	return level >= min
}

func (h *structuredHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}
	clone := *h
	clone.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &clone
}

// WithGroup is accepted but flattened; the log schema is intentionally flat.
func (h *structuredHandler) WithGroup(string) slog.Handler { return h }

func (h *structuredHandler) Handle(ctx context.Context, rec slog.Record) error {
	pairs := make([]kvPair, 0, rec.NumAttrs()+len(h.attrs)+10)
	seen := make(map[string]struct{}, rec.NumAttrs()+len(h.attrs)+10)

	add := func(key string, val slog.Value) {
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		pairs = append(pairs, kvPair{key: key, val: val, seq: len(pairs)})
	}

	add("ts", slog.StringValue(rec.Time.Format(time.RFC3339Nano)))
	add("level", slog.StringValue(rec.Level.String()))

	for _, a := range h.attrs {
		add(a.Key, a.Value)
	}
	rec.Attrs(func(a slog.Attr) bool {
		add(a.Key, a.Value)
		return true
	})
	if rec.Message != "" {
		add("event", slog.StringValue(rec.Message))
	}

	if rid := RIDFrom(ctx); rid != "" {
		add("rid", slog.StringValue(rid))
	}
	if id := UserIDFrom(ctx); id != 0 {
		add("user_id", slog.Int64Value(id))
	}
	if id := ChatIDFrom(ctx); id != 0 {
		add("chat_id", slog.Int64Value(id))
	}
	if handler := HandlerFrom(ctx); handler != "" {
		add("handler", slog.StringValue(handler))
	}

	h.sort(pairs)

	var line []byte
	if h.cfg.format == formatKV {
		line = renderKV(pairs)
	} else {
		line = renderJSON(pairs)
	}
	return h.cfg.writer.Write(line)
}

type kvPair struct {
	key string
	val slog.Value
	seq int
}

// sort orders known keys by schema rank; unknown keys keep insertion order
// after all ranked keys.
func (h *structuredHandler) sort(pairs []kvPair) {
	rankOf := func(p kvPair) int {
		if r, ok := h.rank[p.key]; ok {
			return r
		}
		return len(h.rank) + p.seq
	}
	for i := 1; i < len(pairs); i++ {
		for j := i; j > 0 && rankOf(pairs[j]) < rankOf(pairs[j-1]); j-- {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
		}
	}
}

func renderKV(pairs []kvPair) []byte {
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(p.key)
		b.WriteByte('=')
		b.WriteString(kvValue(p.val))
	}
	b.WriteByte('\n')
	return []byte(b.String())
}

func kvValue(v slog.Value) string {
	v = v.Resolve()
	switch v.Kind() {
	case slog.KindString:
		s := v.String()
		if strings.ContainsAny(s, " \t\"=") || s == "" {
			return strconv.Quote(s)
		}
		return s
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339Nano)
	default:
		return fmt.Sprint(v.Any())
	}
}

func renderJSON(pairs []kvPair) []byte {
	var b strings.Builder
	b.WriteByte('{')
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, _ := json.Marshal(p.key)
		b.Write(keyJSON)
		b.WriteByte(':')
		b.Write(jsonValue(p.val))
	}
	b.WriteString("}\n")
	return []byte(b.String())
}

func jsonValue(v slog.Value) []byte {
	v = v.Resolve()
	var raw any
	switch v.Kind() {
	case slog.KindString:
		raw = v.String()
	case slog.KindInt64:
		raw = v.Int64()
	case slog.KindUint64:
		raw = v.Uint64()
	case slog.KindFloat64:
		raw = v.Float64()
	case slog.KindBool:
		raw = v.Bool()
	case slog.KindDuration:
		raw = v.Duration().String()
	case slog.KindTime:
		raw = v.Time().Format(time.RFC3339Nano)
	default:
		raw = fmt.Sprint(v.Any())
	}
	out, err := json.Marshal(raw)
	if err != nil {
		out, _ = json.Marshal(fmt.Sprint(raw))
	}
	return out
}
