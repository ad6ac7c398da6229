package monitoring

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

// Metrics holds in-process request and domain counters. Constructed once in
// main and injected; there is no package-level instance.
type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	Transitions     map[string]int64 `json:"lifecycle_transitions"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

func NewMetrics() *Metrics {
	return &Metrics{
		StatusCodes: make(map[string]int64),
		Endpoints:   make(map[string]int64),
		Transitions: make(map[string]int64),
		StartTime:   time.Now(),
	}
}

func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		m.mu.Lock()
		m.ActiveRequests++
		m.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		endpoint := c.Request.Method + " " + c.FullPath()

		m.mu.Lock()
		m.RequestCount++
		m.ActiveRequests--
		m.totalDuration += duration
		m.RequestDuration = m.totalDuration / time.Duration(m.RequestCount)
		m.LastRequest = time.Now()
		if statusCode >= 400 {
			m.ErrorCount++
		}
		m.StatusCodes[http.StatusText(statusCode)]++
		m.Endpoints[endpoint]++
		m.mu.Unlock()
	}
}

// CountTransition records a completed lifecycle transition by action name.
func (m *Metrics) CountTransition(action string) {
	m.mu.Lock()
	m.Transitions[action]++
	m.mu.Unlock()
}

func (m *Metrics) Snapshot() *Metrics {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := &Metrics{
		RequestCount:    m.RequestCount,
		RequestDuration: m.RequestDuration,
		ActiveRequests:  m.ActiveRequests,
		ErrorCount:      m.ErrorCount,
		StatusCodes:     make(map[string]int64, len(m.StatusCodes)),
		Endpoints:       make(map[string]int64, len(m.Endpoints)),
		Transitions:     make(map[string]int64, len(m.Transitions)),
		StartTime:       m.StartTime,
		LastRequest:     m.LastRequest,
	}
	for k, v := range m.StatusCodes {
		snapshot.StatusCodes[k] = v
	}
	for k, v := range m.Endpoints {
		snapshot.Endpoints[k] = v
	}
	for k, v := range m.Transitions {
		snapshot.Transitions[k] = v
	}
	return snapshot
}

type SystemMetrics struct {
	Uptime         string      `json:"uptime"`
	Memory         MemoryStats `json:"memory"`
	GoroutineCount int         `json:"goroutine_count"`
	CPUCount       int         `json:"cpu_count"`
	GoVersion      string      `json:"go_version"`
}

type MemoryStats struct {
	AllocMB      uint64 `json:"alloc_mb"`
	TotalAllocMB uint64 `json:"total_alloc_mb"`
	SysMB        uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
}

// Handler serves the metrics snapshot plus runtime stats.
func (m *Metrics) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var memStats runtime.MemStats
		runtime.ReadMemStats(&memStats)

		snapshot := m.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"requests": snapshot,
			"system": SystemMetrics{
				Uptime:         time.Since(snapshot.StartTime).String(),
				GoroutineCount: runtime.NumGoroutine(),
				CPUCount:       runtime.NumCPU(),
				GoVersion:      runtime.Version(),
				Memory: MemoryStats{
					AllocMB:      memStats.Alloc / 1024 / 1024,
					TotalAllocMB: memStats.TotalAlloc / 1024 / 1024,
					SysMB:        memStats.Sys / 1024 / 1024,
					NumGC:        memStats.NumGC,
				},
			},
		})
	}
}

// HealthCheckFunc probes one dependency.
type HealthCheckFunc func() error

// HealthHandler runs the registered dependency probes and reports overall
// health; any failing probe degrades the status and flips the HTTP code.
func HealthHandler(checks map[string]HealthCheckFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		results := make(map[string]string, len(checks))
		for name, check := range checks {
			if err := check(); err != nil {
				results[name] = "unhealthy: " + err.Error()
				status = http.StatusServiceUnavailable
			} else {
				results[name] = "healthy"
			}
		}
		c.JSON(status, gin.H{
			"status": http.StatusText(status),
			"checks": results,
		})
	}
}
