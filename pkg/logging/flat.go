package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var flatPool = buffer.NewPool()

// FlatEncoder writes every entry as a single flat JSON object. Context
// fields and entry metadata share one namespace, caller information is split
// into file, line and function keys.
type FlatEncoder struct {
	// Fields added through With accumulate here.
	*zapcore.MapObjectEncoder
	config zapcore.EncoderConfig
}

// NewFlatEncoder creates a new flat JSON encoder
func NewFlatEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &FlatEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// EncodeEntry encodes a log entry
func (e *FlatEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	enc := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		enc.Fields[k] = v
	}
	for _, field := range fields {
		field.AddTo(enc)
	}

	out := make(map[string]interface{}, len(enc.Fields)+8)
	for k, v := range enc.Fields {
		switch val := v.(type) {
		case time.Duration:
			out[k] = val.String()
		case time.Time:
			out[k] = val.Format(time.RFC3339Nano)
		default:
			out[k] = v
		}
	}

	out[keyOr(e.config.TimeKey, "timestamp")] = entry.Time.Format(time.RFC3339Nano)
	out[keyOr(e.config.LevelKey, "level")] = entry.Level.String()
	out[keyOr(e.config.MessageKey, "message")] = entry.Message
	if entry.LoggerName != "" {
		out["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		out["file"] = entry.Caller.File
		out["line"] = entry.Caller.Line
		out["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		out["stack"] = entry.Stack
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	buf := flatPool.Get()
	buf.AppendBytes(data)
	buf.AppendString(zapcore.DefaultLineEnding)
	return buf, nil
}

// Clone creates a copy of the encoder
func (e *FlatEncoder) Clone() zapcore.Encoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return &FlatEncoder{
		MapObjectEncoder: clone,
		config:           e.config,
	}
}

func keyOr(key, fallback string) string {
	if key == "" {
		return fallback
	}
	return key
}
