package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/careradius/internal/app"
	"git.home.luguber.info/inful/careradius/internal/config"
	"git.home.luguber.info/inful/careradius/internal/geo"
	"git.home.luguber.info/inful/careradius/internal/geofence"
	"git.home.luguber.info/inful/careradius/internal/metrics"
	"git.home.luguber.info/inful/careradius/internal/server/responses"
	"git.home.luguber.info/inful/careradius/internal/zones"
)

var home = geo.Position{Latitude: 37.77, Longitude: -122.41}

type fakeDaemon struct {
	health       responses.HealthResponse
	reasons      []string
	background   *bool
	notification *bool
}

func (f *fakeDaemon) Health(context.Context) responses.HealthResponse { return f.health }

func (f *fakeDaemon) Reregister(_ context.Context, reason string) responses.RecoveryResponse {
	f.reasons = append(f.reasons, reason)
	return responses.RecoveryResponse{Reason: reason}
}

func (f *fakeDaemon) SetBackgroundLocation(granted bool)   { f.background = &granted }
func (f *fakeDaemon) SetNotificationsEnabled(enabled bool) { f.notification = &enabled }

type testServer struct {
	app    *app.App
	daemon *fakeDaemon
	router http.Handler
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = ":memory:"
	a, err := app.Build(t.Context(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	d := &fakeDaemon{health: responses.HealthResponse{Status: responses.HealthStatusHealthy}}
	r := chi.NewRouter()
	Routes{
		Zones:       NewZoneHandlers(a.Zones, nil),
		Transitions: NewTransitionHandlers(a.Handler, a),
		Monitoring:  NewMonitoringHandlers(d),
		Metrics:     metrics.HTTPHandler(a.Registry),
	}.Mount(r)
	return &testServer{app: a, daemon: d, router: r}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createZone(t *testing.T, name string, radius float64) geofence.Zone {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/zones", geofence.Zone{Name: name, Center: home, RadiusMeters: radius})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[zones.Result](t, rec)
	require.True(t, res.Registration.Monitored)
	require.Empty(t, res.Warning)
	return res.Zone
}

func (s *testServer) transition(t *testing.T, zoneID int64, kind string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/transitions", responses.TransitionRequest{ZoneID: zoneID, Kind: kind})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[responses.TransitionResponse](t, rec).Outcome
}

func TestZoneEndpoints(t *testing.T) {
	s := newTestServer(t)

	z := s.createZone(t, "Home", 30)
	require.NotZero(t, z.ID)
	require.Equal(t, geofence.DefaultIcon, z.Icon)

	rec := s.do(t, http.MethodGet, fmt.Sprintf("/api/zones/%d", z.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "Home", decode[geofence.Zone](t, rec).Name)

	rec = s.do(t, http.MethodGet, "/api/zones", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, decode[[]geofence.Zone](t, rec), 1)

	z.Name = "Home base"
	z.RadiusMeters = 5
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/zones/%d", z.ID), z)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	z.RadiusMeters = 40
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/zones/%d", z.ID), z)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[zones.Result](t, rec)
	require.Equal(t, "Home base", res.Zone.Name)
	require.Nil(t, res.Reconcile, "widening is never checked")

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/zones/%d/move", z.ID), geo.Offset(home, 0, 5))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/zones/%d", z.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, fmt.Sprintf("/api/zones/%d", z.ID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/zones/abc", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTransitionsAndVisitHistory(t *testing.T) {
	s := newTestServer(t)
	z := s.createZone(t, "Gym", 30)

	require.Equal(t, "opened", s.transition(t, z.ID, "ENTER"))
	require.Equal(t, "duplicate_enter", s.transition(t, z.ID, "enter"))
	require.Equal(t, "closed", s.transition(t, z.ID, "EXIT"))
	require.Equal(t, "stray_exit", s.transition(t, z.ID, "EXIT"))

	rec := s.do(t, http.MethodDelete, fmt.Sprintf("/api/zones/%d", z.ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/visits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	visits := decode[[]responses.VisitResponse](t, rec)
	require.Len(t, visits, 1)
	require.Nil(t, visits[0].ZoneID)
	require.Nil(t, visits[0].Zone)
	require.Equal(t, "Gym", visits[0].ZoneName)
	require.NotEqual(t, "--", visits[0].Duration)

	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/visits/%d", visits[0].ID), nil)
	require.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, fmt.Sprintf("/api/visits/%d", visits[0].ID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodDelete, "/api/visits", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, int64(0), decode[responses.ClearedResponse](t, rec).Deleted)
}

func TestTransitionValidation(t *testing.T) {
	s := newTestServer(t)

	cases := map[string]string{
		"unknown kind":  `{"zone_id":1,"kind":"DWELL"}`,
		"missing zone":  `{"kind":"ENTER"}`,
		"unknown field": `{"zone_id":1,"kind":"ENTER","extra":true}`,
		"empty body":    ``,
		"not json":      `{`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/transitions", body)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}

	require.Equal(t, "unknown_zone", s.transition(t, 99, "ENTER"))
}

func TestShrinkClosesVisitWhenOutside(t *testing.T) {
	s := newTestServer(t)
	z := s.createZone(t, "Park", 50)
	require.Equal(t, "opened", s.transition(t, z.ID, "ENTER"))

	rec := s.do(t, http.MethodPost, "/api/position", geo.Offset(home, 90, 20))
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())

	z.RadiusMeters = 15
	rec = s.do(t, http.MethodPut, fmt.Sprintf("/api/zones/%d", z.ID), z)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decode[zones.Result](t, rec)
	require.NotNil(t, res.Reconcile)
	require.NotNil(t, res.Reconcile.Closed)
	require.Empty(t, res.Reconcile.Skipped)

	require.Equal(t, "stray_exit", s.transition(t, z.ID, "EXIT"))
}

func TestReconcileEndpoint(t *testing.T) {
	s := newTestServer(t)
	z := s.createZone(t, "Office", 30)
	require.Equal(t, "opened", s.transition(t, z.ID, "ENTER"))

	rec := s.do(t, http.MethodPost, fmt.Sprintf("/api/zones/%d/reconcile", z.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "location_unavailable", decode[map[string]any](t, rec)["skipped"])

	rec = s.do(t, http.MethodPost, "/api/position", geo.Offset(home, 180, 100))
	require.Equal(t, http.StatusAccepted, rec.Code)

	rec = s.do(t, http.MethodPost, fmt.Sprintf("/api/zones/%d/reconcile", z.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	require.NotNil(t, body["closed"])
}

func TestPositionValidation(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodPost, "/api/position", geo.Position{Latitude: 100})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMonitoringEndpoints(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	s.daemon.health.Status = responses.HealthStatusUnhealthy
	rec = s.do(t, http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/recovery/reregister", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"manual"}, s.daemon.reasons)

	rec = s.do(t, http.MethodPut, "/api/permissions/background-location", `{"enabled":false}`)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, s.daemon.background)
	require.False(t, *s.daemon.background)

	rec = s.do(t, http.MethodPut, "/api/permissions/notifications", `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Nil(t, s.daemon.notification)

	s.createZone(t, "Home", 30)
	rec = s.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "careradius_region_registrations_total"))
}
