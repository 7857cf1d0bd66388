package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Routes groups the handler modules mounted on the admin router.
type Routes struct {
	Zones       *ZoneHandlers
	Transitions *TransitionHandlers
	Monitoring  *MonitoringHandlers
	Metrics     http.Handler
}

// Mount registers every admin endpoint on r.
func (rt Routes) Mount(r chi.Router) {
	r.Get("/healthz", rt.Monitoring.HandleHealthCheck)
	if rt.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", rt.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/zones", func(r chi.Router) {
			r.Get("/", rt.Zones.HandleListZones)
			r.Post("/", rt.Zones.HandleCreateZone)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", rt.Zones.HandleGetZone)
				r.Put("/", rt.Zones.HandleReplaceZone)
				r.Delete("/", rt.Zones.HandleDeleteZone)
				r.Post("/move", rt.Zones.HandleMoveZone)
				r.Post("/reconcile", rt.Zones.HandleReconcileZone)
			})
		})
		r.Route("/visits", func(r chi.Router) {
			r.Get("/", rt.Zones.HandleListVisits)
			r.Delete("/", rt.Zones.HandleClearVisits)
			r.Delete("/{id}", rt.Zones.HandleDeleteVisit)
		})
		r.Post("/transitions", rt.Transitions.HandleTransition)
		r.Post("/position", rt.Transitions.HandlePosition)
		r.Post("/recovery/reregister", rt.Monitoring.HandleReregister)
		r.Put("/permissions/background-location", rt.Monitoring.HandleBackgroundLocation)
		r.Put("/permissions/notifications", rt.Monitoring.HandleNotifications)
	})
}
