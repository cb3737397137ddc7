package api

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/wbr-monitor/internal/pkg/httputil"
	"github.com/ignite/wbr-monitor/internal/session"
)

// HealthStatus represents the overall health of the system.
type HealthStatus struct {
	Status  string                    `json:"status"` // "healthy", "degraded", "unhealthy"
	Version string                    `json:"version"`
	Uptime  string                    `json:"uptime"`
	Checks  map[string]ComponentCheck `json:"checks"`
}

// ComponentCheck represents the health of a single component.
type ComponentCheck struct {
	Status  string `json:"status"` // "up", "down", "degraded"
	Latency string `json:"latency,omitempty"`
	Message string `json:"message,omitempty"`
}

// Checker is implemented by dependencies that can verify their own
// connectivity, such as report storage.
type Checker interface {
	Check(ctx context.Context) error
}

// Pinger is implemented by the warehouse source.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthDeps are the dependencies probed by the health endpoints. Any of
// them may be nil; a nil dependency reports "not configured".
type HealthDeps struct {
	DB        *sql.DB
	Redis     *redis.Client
	Storage   Checker
	Warehouse Pinger
	Session   *session.Session
}

// HealthChecker reports on the annotation database, Redis, report storage,
// the warehouse and the review session.
type HealthChecker struct {
	db          *sql.DB
	redisClient *redis.Client
	storage     Checker
	warehouse   Pinger
	session     *session.Session
	startTime   time.Time
}

// NewHealthChecker creates a new HealthChecker.
func NewHealthChecker(d HealthDeps) *HealthChecker {
	return &HealthChecker{
		db:          d.DB,
		redisClient: d.Redis,
		storage:     d.Storage,
		warehouse:   d.Warehouse,
		session:     d.Session,
		startTime:   time.Now(),
	}
}

const (
	healthVersion = "1.0.0"
	notConfigured = "not configured"
)

// HandleHealth returns the health of all components. It always answers 200;
// use /health/ready for probes that need a 503.
//
//	GET /health
func (hc *HealthChecker) HandleHealth(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())

	httputil.OK(w, HealthStatus{
		Status:  determineOverallStatus(checks),
		Version: healthVersion,
		Uptime:  formatUptime(time.Since(hc.startTime)),
		Checks:  checks,
	})
}

// HandleLiveness always returns 200 while the process is running.
//
//	GET /health/live
func (hc *HealthChecker) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]interface{}{
		"status": "alive",
		"uptime": formatUptime(time.Since(hc.startTime)),
	})
}

// HandleReadiness returns 200 only when no configured critical dependency
// is down.
//
//	GET /health/ready
func (hc *HealthChecker) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	checks := hc.runAllChecks(r.Context())
	overall := determineOverallStatus(checks)

	ready := overall != "unhealthy"
	httpStatus := http.StatusOK
	if !ready {
		httpStatus = http.StatusServiceUnavailable
	}
	httputil.JSON(w, httpStatus, map[string]interface{}{
		"ready":  ready,
		"status": overall,
		"checks": checks,
	})
}

func (hc *HealthChecker) runAllChecks(ctx context.Context) map[string]ComponentCheck {
	type result struct {
		name  string
		check ComponentCheck
	}
	probes := map[string]func(context.Context) ComponentCheck{
		"database":  hc.checkDatabase,
		"redis":     hc.checkRedis,
		"storage":   hc.checkStorage,
		"warehouse": hc.checkWarehouse,
		"session":   hc.checkSession,
	}
	ch := make(chan result, len(probes))
	for name, probe := range probes {
		go func(name string, probe func(context.Context) ComponentCheck) {
			ch <- result{name, probe(ctx)}
		}(name, probe)
	}

	checks := make(map[string]ComponentCheck, len(probes))
	for range probes {
		r := <-ch
		checks[r.name] = r.check
	}
	return checks
}

// timed runs fn under a timeout and grades the result by latency.
func timed(ctx context.Context, timeout, slow time.Duration, okMsg string, fn func(context.Context) error) ComponentCheck {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	latency := time.Since(start)

	if err != nil {
		return ComponentCheck{
			Status:  "down",
			Latency: latency.String(),
			Message: fmt.Sprintf("check failed: %v", err),
		}
	}
	if latency > slow {
		return ComponentCheck{
			Status:  "degraded",
			Latency: latency.String(),
			Message: fmt.Sprintf("slow response (%s)", latency),
		}
	}
	return ComponentCheck{Status: "up", Latency: latency.String(), Message: okMsg}
}

// checkDatabase pings the PostgreSQL annotation store.
func (hc *HealthChecker) checkDatabase(ctx context.Context) ComponentCheck {
	if hc.db == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return timed(ctx, 3*time.Second, time.Second, "connected", hc.db.PingContext)
}

func (hc *HealthChecker) checkRedis(ctx context.Context) ComponentCheck {
	if hc.redisClient == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return timed(ctx, 2*time.Second, 500*time.Millisecond, "connected", func(ctx context.Context) error {
		return hc.redisClient.Ping(ctx).Err()
	})
}

func (hc *HealthChecker) checkStorage(ctx context.Context) ComponentCheck {
	if hc.storage == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return timed(ctx, 3*time.Second, time.Second, "accessible", hc.storage.Check)
}

func (hc *HealthChecker) checkWarehouse(ctx context.Context) ComponentCheck {
	if hc.warehouse == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	return timed(ctx, 5*time.Second, 2*time.Second, "connected", hc.warehouse.Ping)
}

// checkSession never fails; an empty session is a valid state.
func (hc *HealthChecker) checkSession(ctx context.Context) ComponentCheck {
	if hc.session == nil {
		return ComponentCheck{Status: "down", Message: notConfigured}
	}
	info := hc.session.Info()
	if !info.Loaded {
		return ComponentCheck{Status: "up", Message: "no dataset loaded"}
	}
	return ComponentCheck{
		Status:  "up",
		Message: fmt.Sprintf("%d periods loaded from %s, %d off track", info.Records, info.Source, info.OffTrack),
	}
}

// determineOverallStatus derives the aggregate status from individual checks.
//
// Rules:
//   - "unhealthy" if a configured database or redis annotation store is down
//   - "degraded"  if any check is degraded or another configured check is down
//   - "healthy"   otherwise
func determineOverallStatus(checks map[string]ComponentCheck) string {
	for _, name := range []string{"database", "redis"} {
		if c, ok := checks[name]; ok && c.Status == "down" && c.Message != notConfigured {
			return "unhealthy"
		}
	}
	for _, c := range checks {
		if c.Status == "degraded" {
			return "degraded"
		}
		if c.Status == "down" && c.Message != notConfigured {
			return "degraded"
		}
	}
	return "healthy"
}

// formatUptime produces a human-readable uptime string like "3d 4h 12m 5s".
func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
	}
	if minutes > 0 {
		return fmt.Sprintf("%dm %ds", minutes, seconds)
	}
	return fmt.Sprintf("%ds", seconds)
}
