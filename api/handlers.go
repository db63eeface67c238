package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"
	contractx "github.com/tanpawarit/Chative-Cancellation-Feedback/agent/contract"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/feedback"
	"github.com/tanpawarit/Chative-Cancellation-Feedback/agent/gateway"
)

type messageRequest struct {
	ConversationID         string `json:"conversationId"`
	PreviousComponentState any    `json:"previousComponentState"`
	Message                string `json:"message"`
}

type answerRequest struct {
	FieldID string `json:"fieldId"`
	Value   string `json:"value"`
}

type submitErrorResponse struct {
	Error  string `json:"error"`
	Result any    `json:"result"`
}

func readJSON(r *http.Request, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errors.New("empty body")
	}
	return sonic.Unmarshal(raw, dst)
}

// componentStateString accepts the widget state either as a JSON string or
// as a raw JSON value.
func componentStateString(v any) (string, error) {
	switch state := v.(type) {
	case nil:
		return "", nil
	case string:
		return state, nil
	default:
		return sonic.MarshalString(state)
	}
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, r, http.StatusBadRequest, msgMessageRequired)
		return
	}
	componentState, err := componentStateString(req.PreviousComponentState)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}

	conversationID := strings.TrimSpace(req.ConversationID)
	if conversationID == "" {
		conversationID = strings.TrimSpace(r.Header.Get(conversationHeader))
	}

	s.runExchange(w, r, contractx.ExchangeRequest{
		ConversationID:         conversationID,
		PreviousComponentState: componentState,
		Message:                req.Message,
	})
}

func (s *Server) runExchange(w http.ResponseWriter, r *http.Request, req contractx.ExchangeRequest) {
	out, err := s.exchanger.Exchange(r.Context(), req)
	if err != nil {
		s.metrics.ExchangeCompleted(exchangeOutcome(err))
		s.writeExchangeError(w, r, err)
		return
	}
	s.metrics.ExchangeCompleted("ok")
	writeJSONResponse(w, r, http.StatusOK, out)
}

func exchangeOutcome(err error) string {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		return "invalid"
	case errors.Is(err, contractx.ErrVersionConflict):
		return "conflict"
	case errors.Is(err, contractx.ErrSchemaViolation):
		return "schema_violation"
	default:
		return "error"
	}
}

func (s *Server) writeExchangeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, contractx.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrVersionConflict):
		writeError(w, r, http.StatusConflict, msgConflict)
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("summary exchange failed")
		writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

func (s *Server) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, r, http.StatusCreated, map[string]string{"conversationId": s.newID()})
}

func (s *Server) handleReasons(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, r, http.StatusOK, map[string]any{"reasons": feedback.Reasons()})
}

func (s *Server) handleOpenForm(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	view, err := s.feedback.Open(r.Context(), vars["conversationID"], vars["reason"])
	if err != nil {
		s.writeFeedbackError(w, r, err, nil)
		return
	}
	writeJSONResponse(w, r, http.StatusOK, view)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	vars := mux.Vars(r)
	res, err := s.feedback.Submit(r.Context(), vars["conversationID"], vars["reason"], req.FieldID, req.Value)
	if err != nil {
		s.writeFeedbackError(w, r, err, res)
		return
	}
	writeJSONResponse(w, r, http.StatusOK, res)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var sig feedback.Signal
	if err := readJSON(r, &sig); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	vars := mux.Vars(r)
	view, err := s.feedback.Advance(r.Context(), vars["conversationID"], vars["reason"], sig)
	if err != nil {
		s.writeFeedbackError(w, r, err, nil)
		return
	}
	writeJSONResponse(w, r, http.StatusOK, view)
}

// writeFeedbackError maps collector errors. A failed delivery still carries
// the applied state so the UI can move on.
func (s *Server) writeFeedbackError(w http.ResponseWriter, r *http.Request, err error, applied any) {
	switch {
	case errors.Is(err, contractx.ErrUnknownReason):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, contractx.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, contractx.ErrFormComplete):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, contractx.ErrUpstream):
		log.Ctx(r.Context()).Warn().Err(err).Msg("feedback message delivery failed")
		writeJSONResponse(w, r, http.StatusBadGateway, submitErrorResponse{Error: msgUpstream, Result: applied})
	default:
		log.Ctx(r.Context()).Error().Err(err).Msg("feedback operation failed")
		writeError(w, r, http.StatusInternalServerError, msgInternal)
	}
}

// handleQStashMessage receives messages published by the qstash gateway.
func (s *Server) handleQStashMessage(w http.ResponseWriter, r *http.Request) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if err := s.verifier.Verify(r.Header.Get("Upstash-Signature"), raw, s.qstashDestination); err != nil {
		log.Ctx(r.Context()).Warn().Err(err).Msg("rejected qstash delivery")
		writeError(w, r, http.StatusUnauthorized, msgUnauthorized)
		return
	}

	var env gateway.Envelope
	if err := sonic.Unmarshal(raw, &env); err != nil {
		writeError(w, r, http.StatusBadRequest, msgInvalidBody)
		return
	}
	if env.ConversationID == "" {
		env.ConversationID = strings.TrimSpace(r.Header.Get(conversationHeader))
	}
	if strings.TrimSpace(env.Message) == "" {
		writeError(w, r, http.StatusBadRequest, msgMessageRequired)
		return
	}
	s.runExchange(w, r, env.ExchangeRequest)
}

