package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/aristath/cryptowallet/internal/database"
	"github.com/aristath/cryptowallet/internal/scheduler"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// RunCounter reports how many optimizer runs are in progress.
type RunCounter interface {
	Active() int
}

// SystemHandlers serves process, host and database status
type SystemHandlers struct {
	log       zerolog.Logger
	dataDir   string
	databases []*database.DB
	jobs      map[string]scheduler.Job
	runs      RunCounter
	startedAt time.Time
}

// NewSystemHandlers creates system handlers. runs may be nil.
func NewSystemHandlers(log zerolog.Logger, dataDir string, databases []*database.DB, jobs []scheduler.Job, runs RunCounter) *SystemHandlers {
	byName := make(map[string]scheduler.Job, len(jobs))
	for _, j := range jobs {
		byName[j.Name()] = j
	}
	return &SystemHandlers{
		log:       log.With().Str("handler", "system").Logger(),
		dataDir:   dataDir,
		databases: databases,
		jobs:      byName,
		runs:      runs,
		startedAt: time.Now(),
	}
}

// SystemStatusResponse represents the system status
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	GoVersion     string  `json:"go_version"`
	Goroutines    int     `json:"goroutines"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	ActiveRuns    int     `json:"active_runs"`
	DataDirMB     float64 `json:"data_dir_mb"`
	LastChecked   string  `json:"last_checked"`
}

// DatabaseStatsResponse represents database statistics
type DatabaseStatsResponse struct {
	Databases   []database.Stats `json:"databases"`
	TotalSizeMB float64          `json:"total_size_mb"`
	LastChecked string           `json:"last_checked"`
}

// HandleSystemStatus handles GET /api/system/status
func (h *SystemHandlers) HandleSystemStatus(w http.ResponseWriter, r *http.Request) {
	cpuPercent, memPercent := h.getSystemStats()

	active := 0
	if h.runs != nil {
		active = h.runs.Active()
	}

	h.writeJSON(w, SystemStatusResponse{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(h.startedAt).Seconds()),
		GoVersion:     runtime.Version(),
		Goroutines:    runtime.NumGoroutine(),
		CPUPercent:    cpuPercent,
		MemoryPercent: memPercent,
		ActiveRuns:    active,
		DataDirMB:     h.getDirSize(h.dataDir),
		LastChecked:   time.Now().Format(time.RFC3339),
	})
}

// HandleDatabaseStats handles GET /api/system/databases
func (h *SystemHandlers) HandleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	response := DatabaseStatsResponse{
		Databases:   []database.Stats{},
		LastChecked: time.Now().Format(time.RFC3339),
	}
	for _, db := range h.databases {
		stats, err := db.GetStats()
		if err != nil {
			h.log.Warn().Err(err).Str("database", db.Name()).Msg("Failed to get database stats")
			continue
		}
		response.Databases = append(response.Databases, *stats)
		response.TotalSizeMB += float64(stats.SizeBytes+stats.WALSizeBytes) / 1024 / 1024
	}
	h.writeJSON(w, response)
}

// HandleTriggerJob handles POST /api/system/jobs/{name} by running the job immediately
func (h *SystemHandlers) HandleTriggerJob(w http.ResponseWriter, r *http.Request, name string) {
	job, ok := h.jobs[name]
	if !ok {
		http.Error(w, "Unknown job: "+name, http.StatusNotFound)
		return
	}

	h.log.Info().Str("job", name).Msg("Manual job run triggered")
	start := time.Now()
	if err := job.Run(); err != nil {
		h.log.Error().Err(err).Str("job", name).Msg("Manual job run failed")
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]interface{}{
		"status":      "success",
		"job":         name,
		"duration_ms": time.Since(start).Milliseconds(),
	})
}

// getDirSize calculates total size of a directory in MB
func (h *SystemHandlers) getDirSize(dirPath string) float64 {
	if dirPath == "" {
		return 0
	}

	var totalSize int64
	err := filepath.Walk(dirPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if !info.IsDir() {
			totalSize += info.Size()
		}
		return nil
	})
	if err != nil {
		h.log.Warn().Err(err).Str("dir", dirPath).Msg("Failed to calculate directory size")
		return 0
	}
	return float64(totalSize) / 1024 / 1024
}

// getSystemStats returns CPU and RAM usage percentages, sampling CPU over 100ms
func (h *SystemHandlers) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}
	return cpuAvg, memStat.UsedPercent
}

// writeJSON writes a JSON response
func (h *SystemHandlers) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
