// Package cloudwatch reads CloudWatch Logs through the aws command line
// tool. Credentials, profiles and regions resolve exactly as they do for
// the interactive sessions, which go through the same binary.
package cloudwatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/user/cloudmux/internal/logtail"
)

// runFunc executes name with args and returns stdout. Tests replace it.
type runFunc func(ctx context.Context, name string, args ...string) ([]byte, error)

// Source implements logtail.Source with `aws logs filter-log-events`.
type Source struct {
	binary string
	run    runFunc
}

// NewSource returns a Source that invokes binary, "aws" when empty.
func NewSource(binary string) *Source {
	if strings.TrimSpace(binary) == "" {
		binary = "aws"
	}
	return &Source{binary: binary, run: runCommand}
}

type filterResponse struct {
	Events []struct {
		Timestamp     int64  `json:"timestamp"`
		Message       string `json:"message"`
		LogStreamName string `json:"logStreamName"`
		IngestionTime *int64 `json:"ingestionTime"`
	} `json:"events"`
}

// Tail returns every event in q.LogGroup at or after q.Since.
func (s *Source) Tail(ctx context.Context, q logtail.Query) ([]logtail.LogEvent, error) {
	out, err := s.run(ctx, s.binary, Args(q)...)
	if err != nil {
		return nil, err
	}

	var resp filterResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, fmt.Errorf("decode filter-log-events output: %w", err)
	}
	events := make([]logtail.LogEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		events = append(events, logtail.LogEvent{
			Timestamp:     e.Timestamp,
			Message:       e.Message,
			LogStreamName: e.LogStreamName,
			IngestionTime: e.IngestionTime,
		})
	}
	return events, nil
}

// Args builds the argument vector for one query.
func Args(q logtail.Query) []string {
	args := []string{
		"logs", "filter-log-events",
		"--log-group-name", q.LogGroup,
		"--start-time", strconv.FormatInt(q.Since, 10),
	}
	if q.Filter != "" {
		args = append(args, "--filter-pattern", q.Filter)
	}
	if q.Profile != "" {
		args = append(args, "--profile", q.Profile)
	}
	if q.Region != "" {
		args = append(args, "--region", q.Region)
	}
	return append(args, "--output", "json")
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = err.Error()
		}
		return nil, fmt.Errorf("%s logs filter-log-events: %s", name, msg)
	}
	return out, nil
}
