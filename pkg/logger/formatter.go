package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

type JSONFormatter struct {
	TimestampFormat string
	AppName         string
	Version         string
}

func (f *JSONFormatter) Format(entry *logrus.Entry) ([]byte, error) {
	data := make(map[string]interface{}, len(entry.Data)+5)

	timestampFormat := f.TimestampFormat
	if timestampFormat == "" {
		timestampFormat = time.RFC3339
	}
	data["timestamp"] = entry.Time.Format(timestampFormat)
	data["level"] = entry.Level.String()
	data["message"] = entry.Message

	if f.AppName != "" {
		data["app"] = f.AppName
	}
	if f.Version != "" {
		data["version"] = f.Version
	}

	if entry.HasCaller() {
		data["caller"] = fmt.Sprintf("%s:%d", entry.Caller.File, entry.Caller.Line)
	}

	for k, v := range entry.Data {
		// errors do not marshal to anything useful
		if err, ok := v.(error); ok {
			data[k] = err.Error()
			continue
		}
		data[k] = v
	}

	b := entry.Buffer
	if b == nil {
		b = &bytes.Buffer{}
	}

	if err := json.NewEncoder(b).Encode(data); err != nil {
		return nil, fmt.Errorf("failed to marshal fields to JSON: %w", err)
	}

	return b.Bytes(), nil
}
