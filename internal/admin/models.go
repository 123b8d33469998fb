package admin

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/goodtune/pillbox/internal/schedule"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code"`
}

// SlotView is one time slot as shown to clients.
type SlotView struct {
	Index   int    `json:"index"`
	Label   string `json:"label"`
	Time    string `json:"time"`
	Hour    int    `json:"hour"`
	Minute  int    `json:"minute"`
	Enabled bool   `json:"enabled"`
}

// SlotRequest edits one slot. Omitted fields keep their current value.
type SlotRequest struct {
	Hour    *int  `json:"hour,omitempty"`
	Minute  *int  `json:"minute,omitempty"`
	Enabled *bool `json:"enabled,omitempty"`
}

// ModuleView is one cartridge as shown to clients.
type ModuleView struct {
	Index    int    `json:"index"`
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	SlotMask uint8  `json:"slot_mask"`
	Slots    []int  `json:"slots"`
}

// ModuleRequest edits one cartridge; omitted fields are unchanged.
type ModuleRequest struct {
	Name     *string `json:"name,omitempty"`
	Quantity *int    `json:"quantity,omitempty"`
	SlotMask *uint8  `json:"slot_mask,omitempty"`
}

// MasterRequest switches the whole schedule.
type MasterRequest struct {
	Enabled bool `json:"enabled"`
}

// ManualResponse reports a module's held-open state after a toggle.
type ManualResponse struct {
	Module int  `json:"module"`
	Active bool `json:"active"`
}

func slotViews(slots [schedule.SlotCount]schedule.TimeSlot) []SlotView {
	views := make([]SlotView, 0, len(slots))
	for i, s := range slots {
		views = append(views, SlotView{
			Index:   i,
			Label:   schedule.Label(i),
			Time:    s.String(),
			Hour:    s.Hour,
			Minute:  s.Minute,
			Enabled: s.Enabled,
		})
	}
	return views
}

func moduleView(i int, m schedule.MedModule) ModuleView {
	v := ModuleView{
		Index:    i,
		Name:     m.Name,
		Quantity: m.Quantity,
		SlotMask: m.SlotMask,
		Slots:    []int{},
	}
	for slot := 0; slot < schedule.SlotCount; slot++ {
		if m.Assigned(slot) {
			v.Slots = append(v.Slots, slot)
		}
	}
	return v
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(data); err != nil {
		http.Error(w, `{"error":"Internal Server Error","message":"Failed to encode response"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_, _ = w.Write(buf.Bytes())
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, statusCode int, message string) {
	WriteJSON(w, statusCode, ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
	})
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	WriteError(w, statusCode, message)
}
