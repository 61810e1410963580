package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// healthResponse is the /health payload.
type healthResponse struct {
	Status      string            `json:"status"`
	Timestamp   string            `json:"timestamp"`
	Version     string            `json:"version"`
	UptimeSecs  float64           `json:"uptime_seconds"`
	Maintenance *maintenanceBlock `json:"maintenance,omitempty"`
}

type maintenanceBlock struct {
	Running        bool    `json:"running"`
	DurationSecond float64 `json:"duration_seconds"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handleHealth answers the machine health check. It never queries a
// database: liveness is judged purely from in-process state.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Version:    s.cfg.Version,
		UptimeSecs: time.Since(s.cfg.StartedAt).Seconds(),
	}
	if s.cfg.Lock != nil && s.cfg.Lock.IsSet() {
		resp.Maintenance = &maintenanceBlock{
			Running:        true,
			DurationSecond: s.cfg.Lock.HeldSince().Seconds(),
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleStatus answers the human status page with process counters,
// host memory/CPU, and the cached database totals, if any have been
// generated yet.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	uptime := time.Since(s.cfg.StartedAt).Round(time.Second)
	fmt.Fprintf(w, "eddata-collector %s\n", s.cfg.Version)
	fmt.Fprintf(w, "uptime: %s\n", uptime)

	if s.cfg.ProcessedCount != nil {
		fmt.Fprintf(w, "frames processed: %d\n", s.cfg.ProcessedCount())
	}
	if s.cfg.DedupSize != nil {
		fmt.Fprintf(w, "dedup set size: %d\n", s.cfg.DedupSize())
	}
	if s.cfg.Lock != nil && s.cfg.Lock.IsSet() {
		fmt.Fprintf(w, "maintenance: running (%s)\n", s.cfg.Lock.HeldSince().Round(time.Second))
	} else {
		fmt.Fprintln(w, "maintenance: idle")
	}

	cpuPct, memPct := hostStats(s.log)
	fmt.Fprintf(w, "cpu: %.1f%%\n", cpuPct)
	fmt.Fprintf(w, "memory: %.1f%%\n", memPct)

	if s.cfg.Writer != nil {
		if raw, ok := s.cfg.Writer.ReadRaw("totals"); ok {
			fmt.Fprintf(w, "\ndatabase totals:\n%s\n", raw)
		} else {
			fmt.Fprintln(w, "\ndatabase totals: not yet generated")
		}
	}
}

// hostStats reads instantaneous CPU and memory utilization, falling back
// to zero values on error rather than failing the request.
func hostStats(log zerolog.Logger) (cpuPct, memPct float64) {
	percentages, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		log.Warn().Err(err).Msg("status: cpu.Percent failed")
	} else if len(percentages) > 0 {
		cpuPct = percentages[0]
	}

	vm, err := mem.VirtualMemory()
	if err != nil {
		log.Warn().Err(err).Msg("status: mem.VirtualMemory failed")
	} else {
		memPct = vm.UsedPercent
	}
	return cpuPct, memPct
}
