package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/wfunc/nightfall/apperr"
	"github.com/wfunc/nightfall/logger"
	"github.com/wfunc/nightfall/models"
)

const qrSize = 320

type createSessionBody struct {
	CreatorID       string `json:"creator_id"`
	Stake           string `json:"stake"`
	MinParticipants int    `json:"min_participants"`
}

type participantBody struct {
	ParticipantID string `json:"participant_id"`
}

type nightActionBody struct {
	ParticipantID string             `json:"participant_id"`
	Action        models.NightAction `json:"action"`
}

type taskAnswerBody struct {
	ParticipantID string   `json:"participant_id"`
	Answer        []string `json:"answer"`
}

type voteBody struct {
	ParticipantID string `json:"participant_id"`
	Target        string `json:"target"`
}

type errorBody struct {
	Kind    string `json:"kind"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *GameServer) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionBody
	if !decodeBody(w, r, &body) {
		return
	}
	result, err := s.service.CreateSession(r.Context(), body.CreatorID, body.Stake, body.MinParticipants)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (s *GameServer) listSessions(w http.ResponseWriter, r *http.Request) {
	snaps, err := s.service.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snaps)
}

// getSession returns the public view, or the private view when the
// participant query parameter names a member.
func (s *GameServer) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	var (
		snap models.Snapshot
		err  error
	)
	if pid := r.URL.Query().Get("participant"); pid != "" {
		snap, err = s.service.GetStateForParticipant(r.Context(), sessionID, pid)
	} else {
		snap, err = s.service.GetPublicState(r.Context(), sessionID)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// sessionQR renders the join link of a session as a PNG.
func (s *GameServer) sessionQR(w http.ResponseWriter, r *http.Request) {
	snap, err := s.service.GetPublicState(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	png, err := qrcode.Encode(s.joinURL(snap.RoomCode), qrcode.Medium, qrSize)
	if err != nil {
		logger.Log.Errorf("qr generation for %s failed: %v", snap.SessionID, err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}

func (s *GameServer) joinURL(code string) string {
	return strings.TrimRight(s.cfg.PublicURL, "/") + "/join/" + code
}

func (s *GameServer) joinSession(w http.ResponseWriter, r *http.Request) {
	var body participantBody
	if !decodeBody(w, r, &body) {
		return
	}
	snap, err := s.service.JoinSession(r.Context(), chi.URLParam(r, "sessionID"), body.ParticipantID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *GameServer) signalReady(w http.ResponseWriter, r *http.Request) {
	var body participantBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.service.SignalReady(r.Context(), chi.URLParam(r, "sessionID"), body.ParticipantID))
}

func (s *GameServer) submitNightAction(w http.ResponseWriter, r *http.Request) {
	var body nightActionBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.service.SubmitNightAction(r.Context(), chi.URLParam(r, "sessionID"), body.ParticipantID, body.Action))
}

func (s *GameServer) submitTaskAnswer(w http.ResponseWriter, r *http.Request) {
	var body taskAnswerBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.service.SubmitTaskAnswer(r.Context(), chi.URLParam(r, "sessionID"), body.ParticipantID, body.Answer))
}

func (s *GameServer) submitVote(w http.ResponseWriter, r *http.Request) {
	var body voteBody
	if !decodeBody(w, r, &body) {
		return
	}
	writeResult(w, s.service.SubmitVote(r.Context(), chi.URLParam(r, "sessionID"), body.ParticipantID, body.Target))
}

func (s *GameServer) participantStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.service.ParticipantStats(r.Context(), chi.URLParam(r, "participantID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *GameServer) participantHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, apperr.ErrInvalidInput.WithDetail("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	records, err := s.service.ParticipantHistory(r.Context(), chi.URLParam(r, "participantID"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, apperr.ErrInvalidInput.Wrap(err))
		return false
	}
	return true
}

func writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Log.Errorf("request failed: %v", err)
	}
	writeJSON(w, status, errorBody{
		Kind:    apperr.KindOf(err).String(),
		Code:    string(apperr.CodeOf(err)),
		Message: err.Error(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
