package joblist

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultYAMLPath is where WriteYAML writes when given an empty path.
const DefaultYAMLPath = "./crontab.yaml"

// Records flattens every selected job of every mail target and time scope
// into structured records. IDs are 1-based and count jobs, so the timings of
// one job share an ID. IDs run across the whole list and are not reset per
// mail target or time scope.
func (l *JobList) Records() ([]Record, error) {
	l.stats.Jobs, l.stats.Records = 0, 0

	var (
		out []Record
		id  int
	)
	for _, bucket := range l.buckets() {
		for _, sb := range bucket.scopes {
			for _, j := range sb.jobs {
				if !l.selected(j) {
					continue
				}
				id++

				timings, err := l.timings(sb.scope, j)
				if err != nil {
					return nil, err
				}
				command := j.Command()
				for _, t := range timings {
					res := l.normalizer.Normalize(command)
					out = append(out, Record{
						ID:          id,
						Command:     res.Command,
						Time:        t,
						MarkerField: res.Field,
						MarkerValue: res.Value,
					})
				}
			}
		}
	}
	l.stats.Jobs, l.stats.Records = id, len(out)
	return out, nil
}

// YAMLOutput serializes the records under a top-level "cronjobs" key. It
// returns nil when no job was defined.
func (l *JobList) YAMLOutput() ([]byte, error) {
	if l.count == 0 {
		return nil, nil
	}
	records, err := l.Records()
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []Record{}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(document{CronJobs: records}); err != nil {
		return nil, fmt.Errorf("joblist: encoding records: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("joblist: encoding records: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteYAML writes YAMLOutput to path, DefaultYAMLPath when empty. Nothing is
// written when no job was defined; the returned bool reports whether a file
// was written.
func (l *JobList) WriteYAML(path string) (bool, error) {
	data, err := l.YAMLOutput()
	if err != nil {
		return false, err
	}
	return l.WriteYAMLData(path, data)
}

// WriteYAMLData writes a document already produced by YAMLOutput. A nil
// document writes nothing.
func (l *JobList) WriteYAMLData(path string, data []byte) (bool, error) {
	if path == "" {
		path = DefaultYAMLPath
	}
	if data == nil {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	l.logger.Info("joblist: structured output written", "path", path, "records", l.stats.Records)
	return true, nil
}

type document struct {
	CronJobs []Record `yaml:"cronjobs"`
}
