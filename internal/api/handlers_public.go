package api

import (
	"net/http"
	"strings"

	"marpro/internal/domain"
	"marpro/internal/models"
)

type createOrderResponse struct {
	ID       string                     `json:"id"`
	Bookings []*models.EquipmentBooking `json:"bookings"`
}

func (s *HTTPServer) handleCatalog(w http.ResponseWriter, r *http.Request) {
	st, err := models.ParseServiceType(r.PathValue("serviceType"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown service type")
		return
	}
	lang := strings.TrimSpace(r.URL.Query().Get("lang"))
	writeJSON(w, http.StatusOK, map[string]any{
		"serviceType": st,
		"items":       s.services.Catalog.ActiveEntries(st, lang),
	})
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	st, err := models.ParseServiceType(q.Get("equipmentType"))
	if err != nil {
		writeServiceError(w, r, s.logger, domain.NewValidationError("equipmentType", "must be containers or excavators"))
		return
	}

	req := models.AvailabilityRequest{
		EquipmentType: st,
		EquipmentID:   strings.TrimSpace(q.Get("equipmentId")),
		Schedule: models.Schedule{
			Date:            strings.TrimSpace(q.Get("date")),
			StartTime:       strings.TrimSpace(q.Get("startTime")),
			EndTime:         strings.TrimSpace(q.Get("endTime")),
			EndDate:         strings.TrimSpace(q.Get("endDate")),
			ReservationType: models.ReservationType(strings.TrimSpace(q.Get("reservationType"))),
		},
	}

	res, err := s.services.Bookings.CheckAvailability(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *HTTPServer) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req models.OrderRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, bookings, err := s.services.Orders.Submit(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*models.EquipmentBooking{}
	}
	writeJSON(w, http.StatusOK, createOrderResponse{ID: order.ID, Bookings: bookings})
}

func (s *HTTPServer) handleCreateWorkApplication(w http.ResponseWriter, r *http.Request) {
	var req models.WorkApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	app, err := s.services.WorkApplications.Submit(r.Context(), &req)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": app.ID})
}
