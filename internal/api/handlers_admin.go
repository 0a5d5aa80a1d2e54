package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"marpro/internal/domain"
	"marpro/internal/export"
	"marpro/internal/models"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type statusRequest struct {
	Status string `json:"status"`
}

type notesRequest struct {
	Notes string `json:"notes"`
}

type orderResponse struct {
	Order    *models.Order              `json:"order"`
	Bookings []*models.EquipmentBooking `json:"bookings"`
}

func (s *HTTPServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	token, expiresAt, err := s.services.Auth.Login(r.Context(), req.Password, clientIP(r))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, loginResponse{Token: token, ExpiresAt: expiresAt})
}

func (s *HTTPServer) handleLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.services.Auth.Logout(r.Context(), bearerToken(r)); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListBookings(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.BookingFilter{
		EquipmentType: models.ServiceType(strings.ToLower(strings.TrimSpace(q.Get("equipmentType")))),
		EquipmentID:   strings.TrimSpace(q.Get("equipmentId")),
		Date:          strings.TrimSpace(q.Get("date")),
		From:          strings.TrimSpace(q.Get("from")),
		To:            strings.TrimSpace(q.Get("to")),
		Status:        strings.TrimSpace(q.Get("status")),
	}

	bookings, err := s.services.Bookings.ListBookings(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*models.EquipmentBooking{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bookings": bookings})
}

func (s *HTTPServer) handleBookingStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	booking, err := s.services.Bookings.UpdateBookingStatus(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Status))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.audit(r, "booking", booking.ID, booking.Status)
	writeJSON(w, http.StatusOK, booking)
}

// handleExportBookings buffers the workbook so a failure still yields a
// proper error status.
func (s *HTTPServer) handleExportBookings(w http.ResponseWriter, r *http.Request) {
	if s.services.Exporter == nil {
		writeError(w, http.StatusNotFound, "export is not configured")
		return
	}
	from := strings.TrimSpace(r.URL.Query().Get("from"))
	to := strings.TrimSpace(r.URL.Query().Get("to"))

	var buf bytes.Buffer
	if err := s.services.Exporter.Export(r.Context(), from, to, &buf); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(from, to)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func (s *HTTPServer) handleListOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := parseLimit(q.Get("limit"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	filter := models.OrderFilter{
		Status: strings.TrimSpace(q.Get("status")),
		Limit:  limit,
	}
	if raw := strings.TrimSpace(q.Get("serviceType")); raw != "" {
		st, err := models.ParseServiceType(raw)
		if err != nil {
			writeServiceError(w, r, s.logger, domain.NewValidationError("serviceType", "unknown service type"))
			return
		}
		filter.ServiceType = st
	}

	orders, err := s.services.Orders.ListOrders(r.Context(), filter)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": orders})
}

func (s *HTTPServer) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	order, bookings, err := s.services.Orders.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if bookings == nil {
		bookings = []*models.EquipmentBooking{}
	}
	writeJSON(w, http.StatusOK, orderResponse{Order: order, Bookings: bookings})
}

func (s *HTTPServer) handleOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	order, err := s.services.Orders.UpdateOrderStatus(r.Context(), r.PathValue("id"), strings.TrimSpace(req.Status))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	s.audit(r, "order", order.ID, order.Status)
	writeJSON(w, http.StatusOK, order)
}

func (s *HTTPServer) handleOrderNotes(w http.ResponseWriter, r *http.Request) {
	var req notesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	if err := s.services.Orders.UpdateOrderNotes(r.Context(), r.PathValue("id"), req.Notes); err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *HTTPServer) handleListWorkApplications(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}

	apps, err := s.services.WorkApplications.List(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, s.logger, err)
		return
	}
	if apps == nil {
		apps = []*models.WorkApplication{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

// audit records which admin session changed a status.
func (s *HTTPServer) audit(r *http.Request, entity, id, status string) {
	event := s.logger.Info().
		Str("request_id", requestIDFromContext(r.Context())).
		Str("entity", entity).
		Str("id", id).
		Str("status", status)
	if session := SessionFromContext(r.Context()); session != nil {
		event = event.Str("session_id", session.ID)
	}
	event.Msg("status changed by admin")
}

// parseLimit accepts an empty value as "no limit".
func parseLimit(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, domain.NewValidationError("limit", "must be a non-negative integer")
	}
	return n, nil
}
