package server

import (
	"context"
	"net/http"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHealthResponse is the /api/system/health payload.
type SystemHealthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds int64   `json:"uptime_seconds"`
	CPUPercent    float64 `json:"cpu_percent"`
	MemoryPercent float64 `json:"memory_percent"`
	DiskPercent   float64 `json:"disk_percent"`
	DatabaseOK    bool    `json:"database_ok"`
	DatabaseError string  `json:"database_error,omitempty"`
}

// handleHealth is the bare liveness probe.
// GET /health
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSystemHealth reports process and host health.
// GET /api/system/health
func (s *Server) handleSystemHealth(w http.ResponseWriter, r *http.Request) {
	resp := SystemHealthResponse{
		Status:        "ok",
		UptimeSeconds: int64(time.Since(s.startedAt).Seconds()),
		DatabaseOK:    true,
	}

	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		resp.CPUPercent = percents[0]
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		resp.MemoryPercent = vm.UsedPercent
	}
	if usage, err := disk.Usage(s.dataDir); err == nil {
		resp.DiskPercent = usage.UsedPercent
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := s.cacheDB.HealthCheck(ctx); err != nil {
		resp.Status = "degraded"
		resp.DatabaseOK = false
		resp.DatabaseError = err.Error()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

// handleDatabaseStats reports cache database statistics.
// GET /api/system/database/stats
func (s *Server) handleDatabaseStats(w http.ResponseWriter, r *http.Request) {
	cacheStats, err := s.store.GetDBStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	fileStats, err := s.cacheDB.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"entries": cacheStats,
		"file":    fileStats,
	})
}

// handleVacuum checkpoints the WAL and compacts the cache database.
// POST /api/system/vacuum
func (s *Server) handleVacuum(w http.ResponseWriter, r *http.Request) {
	if err := s.cacheDB.WALCheckpoint("TRUNCATE"); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.cacheDB.Vacuum(); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats, err := s.cacheDB.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "completed",
		"size_bytes": stats.SizeBytes,
	})
}

// handleTriggerBackup runs the cloud backup job immediately.
// POST /api/system/backup
func (s *Server) handleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	s.runJobNow(w, "cloud_backup")
}

// handleTriggerCleanup purges expired cache entries immediately.
// POST /api/system/cleanup
func (s *Server) handleTriggerCleanup(w http.ResponseWriter, r *http.Request) {
	s.runJobNow(w, "cache_cleanup")
}

// handleTriggerIndexRefresh refreshes the ticker index immediately.
// POST /api/system/refresh-index
func (s *Server) handleTriggerIndexRefresh(w http.ResponseWriter, r *http.Request) {
	s.runJobNow(w, "ticker_index_refresh")
}

func (s *Server) runJobNow(w http.ResponseWriter, name string) {
	if err := s.scheduler.RunNow(name); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed", "job": name})
}
