package server

import (
	"database/sql"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemStatusResponse represents the system status response
type SystemStatusResponse struct {
	Status        string  `json:"status"`
	AccountCount  int     `json:"account_count"`
	HoldingCount  int     `json:"holding_count"`
	SecurityCount int     `json:"security_count"`
	LastRevalued  string  `json:"last_revalued,omitempty"`
	DatabaseMB    float64 `json:"database_mb"`
	CPUPercent    float64 `json:"cpu_percent"`
	RAMPercent    float64 `json:"ram_percent"`
	Goroutines    int     `json:"goroutines"`
}

// handleSystemStatus returns store counts plus host resource usage
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	var accountCount, holdingCount, securityCount int
	var lastRevalued sql.NullString

	row := s.db.Conn().QueryRow(`
		SELECT
			(SELECT COUNT(*) FROM accounts),
			(SELECT COUNT(*) FROM holdings),
			(SELECT COUNT(*) FROM securities),
			(SELECT MAX(updated_at) FROM prices)
	`)
	if err := row.Scan(&accountCount, &holdingCount, &securityCount, &lastRevalued); err != nil {
		s.log.Error().Err(err).Msg("Failed to query system counts")
		s.writeError(w, http.StatusInternalServerError, "failed to query system status")
		return
	}

	cpuPct, ramPct := s.getSystemStats()

	response := SystemStatusResponse{
		Status:        "running",
		AccountCount:  accountCount,
		HoldingCount:  holdingCount,
		SecurityCount: securityCount,
		LastRevalued:  lastRevalued.String,
		DatabaseMB:    s.databaseSizeMB(),
		CPUPercent:    cpuPct,
		RAMPercent:    ramPct,
		Goroutines:    runtime.NumGoroutine(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// getSystemStats calculates CPU and RAM usage percentages.
// A 100ms CPU sample keeps the endpoint responsive for dashboard polling.
func (s *Server) getSystemStats() (float64, float64) {
	cpuPercent, err := cpu.Percent(100*time.Millisecond, false)
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get CPU percentage")
		cpuPercent = []float64{0}
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		s.log.Warn().Err(err).Msg("Failed to get memory statistics")
		return 0, 0
	}

	cpuAvg := 0.0
	if len(cpuPercent) > 0 {
		cpuAvg = cpuPercent[0]
	}

	return cpuAvg, memStat.UsedPercent
}

// databaseSizeMB returns the size of the database file, 0 for :memory:
func (s *Server) databaseSizeMB() float64 {
	info, err := os.Stat(s.db.Path())
	if err != nil {
		return 0
	}
	return float64(info.Size()) / 1024 / 1024
}
