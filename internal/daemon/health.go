package daemon

import (
	"context"
	"fmt"
	"time"

	"git.home.luguber.info/inful/careradius/internal/server/responses"
	"git.home.luguber.info/inful/careradius/internal/version"
)

// Health runs every check. Any unhealthy check makes the daemon unhealthy;
// otherwise any degraded check makes it degraded.
func (d *Daemon) Health(ctx context.Context) responses.HealthResponse {
	checks := []responses.HealthCheck{
		d.timed("daemon_status", d.checkDaemonStatus),
		d.timed("storage", func() (responses.HealthStatus, string) { return d.checkStorage(ctx) }),
		d.timed("background_location", func() (responses.HealthStatus, string) { return d.checkPermission(ctx) }),
		d.timed("region_monitor", d.checkRegistrations),
	}

	overall := responses.HealthStatusHealthy
	for _, c := range checks {
		switch {
		case c.Status == responses.HealthStatusUnhealthy:
			overall = responses.HealthStatusUnhealthy
		case c.Status == responses.HealthStatusDegraded && overall == responses.HealthStatusHealthy:
			overall = responses.HealthStatusDegraded
		}
	}

	uptime := time.Duration(0)
	if d.GetStatus() != StatusStopped {
		uptime = d.uptime()
	}

	return responses.HealthResponse{
		Status:       overall,
		DaemonStatus: d.GetStatus().String(),
		Timestamp:    time.Now().UTC(),
		Uptime:       uptime.String(),
		Version:      version.Version,
		Monitor:      d.app.Monitor.Name(),
		Checks:       checks,

		LastTransition: d.lastTransition.Load(),
	}
}

func (d *Daemon) timed(name string, check func() (responses.HealthStatus, string)) responses.HealthCheck {
	start := time.Now()
	status, msg := check()
	return responses.HealthCheck{Name: name, Status: status, Message: msg, Duration: time.Since(start)}
}

func (d *Daemon) checkDaemonStatus() (responses.HealthStatus, string) {
	switch d.GetStatus() {
	case StatusRunning:
		return responses.HealthStatusHealthy, "Daemon is running normally"
	case StatusStarting:
		return responses.HealthStatusDegraded, "Daemon is still starting up"
	case StatusStopping:
		return responses.HealthStatusDegraded, "Daemon is shutting down"
	case StatusError:
		return responses.HealthStatusUnhealthy, "Region monitor stopped delivering transitions"
	default:
		return responses.HealthStatusUnhealthy, "Daemon is not running"
	}
}

func (d *Daemon) checkStorage(ctx context.Context) (responses.HealthStatus, string) {
	v, err := d.app.Store.SchemaVersion(ctx)
	if err != nil {
		return responses.HealthStatusUnhealthy, fmt.Sprintf("Database unreachable: %v", err)
	}
	return responses.HealthStatusHealthy, fmt.Sprintf("Schema version %d", v)
}

func (d *Daemon) checkPermission(ctx context.Context) (responses.HealthStatus, string) {
	if !d.app.Permission.BackgroundLocationGranted(ctx) {
		return responses.HealthStatusDegraded, "Background location not granted; zones are saved but not monitored"
	}
	return responses.HealthStatusHealthy, "Background location granted"
}

func (d *Daemon) checkRegistrations() (responses.HealthStatus, string) {
	last := d.lastRecovery.Load()
	switch {
	case last == nil:
		return responses.HealthStatusDegraded, "No re-registration pass has finished yet"
	case last.Error != "":
		return responses.HealthStatusDegraded, fmt.Sprintf("Last re-registration pass failed: %s", last.Error)
	case last.Summary.Monitored < last.Summary.Zones:
		return responses.HealthStatusDegraded, fmt.Sprintf("%d of %d zones monitored after %s pass",
			last.Summary.Monitored, last.Summary.Zones, last.Reason)
	default:
		return responses.HealthStatusHealthy, fmt.Sprintf("All %d zones monitored after %s pass",
			last.Summary.Zones, last.Reason)
	}
}
