package logging

import (
	"encoding/json"
	"fmt"

	"github.com/fluent/fluent-logger-golang/fluent"
	"github.com/rs/zerolog"
)

const fluentTagPrefix = "rental_scrooper"

// FluentWriter forwards zerolog JSON lines to a Fluent Bit / fluentd
// forward input, tagged by level ("rental_scrooper.warn").
type FluentWriter struct {
	client *fluent.Fluent
}

func NewFluentWriter(host string, port int) (*FluentWriter, error) {
	client, err := fluent.New(fluent.Config{
		FluentHost:         host,
		FluentPort:         port,
		TagPrefix:          fluentTagPrefix,
		Async:              true,
		ForceStopAsyncSend: true,
	})
	if err != nil {
		return nil, fmt.Errorf("create fluent client: %w", err)
	}
	return &FluentWriter{client: client}, nil
}

func (w *FluentWriter) Write(p []byte) (int, error) {
	tag, record, err := fluentRecord(p)
	if err != nil {
		return 0, err
	}
	if err := w.client.Post(tag, record); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (w *FluentWriter) Close() error {
	return w.client.Close()
}

func fluentRecord(p []byte) (string, map[string]any, error) {
	var record map[string]any
	if err := json.Unmarshal(p, &record); err != nil {
		return "", nil, fmt.Errorf("decode log line: %w", err)
	}
	tag, _ := record[zerolog.LevelFieldName].(string)
	if tag == "" {
		tag = "log"
	}
	return tag, record, nil
}
