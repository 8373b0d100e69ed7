// Package replay feeds recorded JSONL event streams through a pipeline.
package replay

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/just-every/demo-ui-sub000/pipeline"
	"github.com/just-every/demo-ui-sub000/protocol"
)

const maxLineBytes = 10 * 1024 * 1024 // 10 MB max line

// Stats counts what a replay consumed.
type Stats struct {
	Lines   int // non-empty lines seen
	Events  int // events applied to the pipeline
	Skipped int // undecodable lines and unknown event types
}

// File replays a JSONL session file into the pipeline.
func File(path string, p *pipeline.Pipeline) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, err
	}
	defer f.Close()

	return Stream(f, p)
}

// Stream replays newline-delimited events into the pipeline. Undecodable
// lines and unknown event types are counted as skipped, never fatal; only
// a read failure stops the replay.
func Stream(r io.Reader, p *pipeline.Pipeline) (Stats, error) {
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, maxLineBytes)

	var stats Stats
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		stats.Lines++

		ev, err := protocol.Parse(line)
		if err != nil || ev == nil {
			stats.Skipped++
			continue
		}
		p.ProcessEvent(ev)
		stats.Events++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scan event stream: %w", err)
	}
	return stats, nil
}
