package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/goodtune/pillbox/internal/dispense"
	"github.com/goodtune/pillbox/internal/engine"
	"github.com/goodtune/pillbox/internal/schedule"
	"github.com/gorilla/mux"
)

const (
	defaultHistoryLimit = 20
	maxBodyBytes        = 4096
)

// do runs fn on the engine goroutine. Edits run with a context detached
// from the request so a dropped client cannot abort a persist halfway.
func (s *Server) do(r *http.Request, fn func(ctx context.Context, e *engine.Engine) error) error {
	ctx := context.WithoutCancel(r.Context())
	return s.runner.Do(r.Context(), func(e *engine.Engine) error {
		return fn(ctx, e)
	})
}

// writeEngineError maps engine errors onto HTTP statuses.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schedule.ErrSlotIndex), errors.Is(err, schedule.ErrModuleIndex):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, schedule.ErrInvalidTime):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dispense.ErrNoSession):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, engine.ErrStopped),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusServiceUnavailable, "Engine unavailable")
	default:
		s.logger.Error().Err(err).Msg("Engine command failed")
		writeError(w, http.StatusInternalServerError, "Command failed")
	}
}

func pathIndex(r *http.Request, name string) (int, bool) {
	i, err := strconv.Atoi(mux.Vars(r)[name])
	return i, err == nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.runner.Done():
		WriteJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "stopped",
		})
	default:
		WriteJSON(w, http.StatusOK, map[string]interface{}{
			"status": "ok",
		})
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var st engine.Status
	err := s.do(r, func(_ context.Context, e *engine.Engine) error {
		st = e.Status()
		return nil
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

func (s *Server) handleListSlots(w http.ResponseWriter, r *http.Request) {
	var slots [schedule.SlotCount]schedule.TimeSlot
	err := s.do(r, func(_ context.Context, e *engine.Engine) error {
		slots = e.Slots()
		return nil
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"slots": slotViews(slots),
		"count": len(slots),
	})
}

func (s *Server) handleUpdateSlot(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusNotFound, schedule.ErrSlotIndex.Error())
		return
	}

	var req SlotRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var slots [schedule.SlotCount]schedule.TimeSlot
	err := s.do(r, func(ctx context.Context, e *engine.Engine) error {
		current, err := e.Model().Slot(index)
		if err != nil {
			return err
		}
		hour, minute, enabled := current.Hour, current.Minute, current.Enabled
		if req.Hour != nil {
			hour = *req.Hour
		}
		if req.Minute != nil {
			minute = *req.Minute
		}
		if req.Enabled != nil {
			enabled = *req.Enabled
		}
		if err := e.SetSlot(ctx, index, hour, minute, enabled); err != nil {
			return err
		}
		slots = e.Slots()
		return nil
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	updated := slotViews(slots)[index]
	s.logger.Info().
		Int("slot", index).
		Str("time", updated.Time).
		Bool("enabled", updated.Enabled).
		Msg("Slot updated")

	WriteJSON(w, http.StatusOK, updated)
}

func (s *Server) handleListModules(w http.ResponseWriter, r *http.Request) {
	var modules [schedule.ModuleCount]schedule.MedModule
	err := s.do(r, func(_ context.Context, e *engine.Engine) error {
		modules = e.Modules()
		return nil
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	views := make([]ModuleView, 0, len(modules))
	for i, m := range modules {
		views = append(views, moduleView(i, m))
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"modules": views,
		"count":   len(views),
	})
}

func (s *Server) handleUpdateModule(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusNotFound, schedule.ErrModuleIndex.Error())
		return
	}

	var req ModuleRequest
	if !decodeBody(w, r, &req) {
		return
	}

	var updated schedule.MedModule
	err := s.do(r, func(ctx context.Context, e *engine.Engine) error {
		err := e.UpdateModule(ctx, index, engine.ModuleUpdate{
			Name:     req.Name,
			Quantity: req.Quantity,
			SlotMask: req.SlotMask,
		})
		if err != nil {
			return err
		}
		updated = e.Modules()[index]
		return nil
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.logger.Info().
		Int("module", index).
		Str("name", updated.Name).
		Int("quantity", updated.Quantity).
		Msg("Module updated")

	WriteJSON(w, http.StatusOK, moduleView(index, updated))
}

func (s *Server) handleToggleSlot(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusNotFound, schedule.ErrModuleIndex.Error())
		return
	}
	slot, ok := pathIndex(r, "slot")
	if !ok {
		writeError(w, http.StatusNotFound, schedule.ErrSlotIndex.Error())
		return
	}

	var updated schedule.MedModule
	err := s.do(r, func(ctx context.Context, e *engine.Engine) error {
		if err := e.ToggleSlot(ctx, index, slot); err != nil {
			return err
		}
		updated = e.Modules()[index]
		return nil
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, moduleView(index, updated))
}

func (s *Server) handleSetMaster(w http.ResponseWriter, r *http.Request) {
	var req MasterRequest
	if !decodeBody(w, r, &req) {
		return
	}

	err := s.do(r, func(ctx context.Context, e *engine.Engine) error {
		return e.SetMasterEnabled(ctx, req.Enabled)
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}

	s.logger.Info().Bool("enabled", req.Enabled).Msg("Master schedule switched")
	WriteJSON(w, http.StatusOK, req)
}

func (s *Server) handleManual(w http.ResponseWriter, r *http.Request) {
	index, ok := pathIndex(r, "index")
	if !ok {
		writeError(w, http.StatusNotFound, schedule.ErrModuleIndex.Error())
		return
	}

	var active bool
	err := s.do(r, func(ctx context.Context, e *engine.Engine) error {
		var err error
		active, err = e.ToggleManual(ctx, index)
		return err
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, ManualResponse{Module: index, Active: active})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var res dispense.Result
	err := s.do(r, func(ctx context.Context, e *engine.Engine) error {
		var err error
		res, err = e.Confirm(ctx)
		return err
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var res dispense.Result
	err := s.do(r, func(_ context.Context, e *engine.Engine) error {
		var err error
		res, err = e.Cancel()
		return err
	})
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "History is disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	entries := s.history.Recent(limit)
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": entries,
		"count":    len(entries),
	})
}

func (s *Server) handleHistoryEntry(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotFound, "History is disabled")
		return
	}

	res, ok := s.history.Get(mux.Vars(r)["id"])
	if !ok {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	WriteJSON(w, http.StatusOK, res)
}
