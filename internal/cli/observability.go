package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"ehscore/internal/config"
	"ehscore/internal/core"
)

// observability builds the metrics and tracing options cfg selects, plus a
// flush that writes the metrics snapshot and closes the trace file.
func observability(cfg *config.Config) ([]core.ServiceOption, func() error, error) {
	var (
		opts    []core.ServiceOption
		flushes []func() error
	)
	switch cfg.Metrics {
	case core.MetricsExpvar:
		rec := core.NewExpvarMetricsRecorder("")
		opts = append(opts, core.WithMetricsRecorder(rec))
		if cfg.MetricsFile != "" {
			flushes = append(flushes, func() error { return writeJSONFile(cfg.MetricsFile, rec.Snapshot()) })
		}
	case core.MetricsPrometheus:
		reg := prometheus.NewRegistry()
		rec, err := core.NewPrometheusMetricsRecorder(reg)
		if err != nil {
			return nil, nil, fmt.Errorf("register metrics: %w", err)
		}
		opts = append(opts, core.WithMetricsRecorder(rec))
		if cfg.MetricsFile != "" {
			flushes = append(flushes, func() error { return prometheus.WriteToTextfile(cfg.MetricsFile, reg) })
		}
	}
	if cfg.TraceFile != "" {
		f, err := os.OpenFile(cfg.TraceFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open trace file: %w", err)
		}
		opts = append(opts, core.WithTracer(core.NewJSONTracer(f)))
		flushes = append(flushes, f.Close)
	}
	flush := func() error {
		var errs []error
		for _, fn := range flushes {
			errs = append(errs, fn())
		}
		return errors.Join(errs...)
	}
	return opts, flush, nil
}

func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}
