package snapshot

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/go-jose/go-jose/v4/json"
)

// StreamWriter is the subset of the Redis client used by Publisher.
type StreamWriter interface {
	XAdd(ctx context.Context, stream string, values map[string]interface{}) (string, error)
}

// Entry is one stream record in its file form: a kind and its raw JSON payload.
type Entry struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// Publisher appends snapshots to the chain stream.
type Publisher struct {
	writer StreamWriter
	stream string
}

func NewPublisher(writer StreamWriter, stream string) *Publisher {
	return &Publisher{writer: writer, stream: stream}
}

// Publish appends one raw snapshot and returns its stream ID.
func (p *Publisher) Publish(ctx context.Context, kind string, data []byte) (string, error) {
	return p.writer.XAdd(ctx, p.stream, map[string]interface{}{
		"kind": kind,
		"data": string(data),
	})
}

// PublishLines reads newline-delimited Entry records from r and appends them in order.
// Blank lines are skipped. It returns the number of entries published.
func (p *Publisher) PublishLines(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	n := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Bytes()
		if len(bytes.TrimSpace(raw)) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(raw, &e); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		if e.Kind == "" {
			return n, fmt.Errorf("line %d: kind is required", line)
		}
		if _, err := p.Publish(ctx, e.Kind, e.Data); err != nil {
			return n, fmt.Errorf("line %d: %w", line, err)
		}
		n++
	}
	if err := scanner.Err(); err != nil {
		return n, err
	}
	return n, nil
}
