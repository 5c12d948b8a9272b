// Package httpapi binds the authhandler operations to the wire
// protocol described in §6: three JSON endpoints under a configurable
// prefix, plain net/http and ServeMux, in the teacher's cmd/test-server
// style rather than a routing framework.
package httpapi

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/didauth/agentauth/authhandler"
)

// Server wires an authhandler.Handler to three HTTP endpoints.
type Server struct {
	handler *authhandler.Handler
	prefix  string
	mux     *http.ServeMux
}

// New builds a Server. prefix defaults to "/auth" when empty.
func New(handler *authhandler.Handler, prefix string) *Server {
	if prefix == "" {
		prefix = "/auth"
	}
	prefix = strings.TrimSuffix(prefix, "/")

	s := &Server{handler: handler, prefix: prefix, mux: http.NewServeMux()}
	s.mux.HandleFunc(prefix+"/challenge", s.handleChallenge)
	s.mux.HandleFunc(prefix+"/verify", s.handleVerify)
	s.mux.HandleFunc(prefix+"/register", s.handleRegister)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Printf("httpapi: failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	authErr, ok := err.(*authhandler.Error)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorEnvelope{Error: errorBody{
			Code:    string(authhandler.CodeInternalError),
			Message: "internal error",
		}})
		return
	}
	writeJSON(w, authErr.HTTPStatus(), errorEnvelope{Error: errorBody{
		Code:    string(authErr.Code),
		Message: authErr.Message,
		Details: authErr.Details,
	}})
}

// clientID derives the rate-limit key from the request. A reverse
// proxy setting X-Forwarded-For is preferred; the bare remote address
// is the fallback.
func clientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return r.RemoteAddr
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req authhandler.ChallengeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &authhandler.Error{Code: authhandler.CodeInvalidRequest, Message: "malformed json body"})
		return
	}

	resp, err := s.handler.Challenge(r.Context(), req, clientID(r))
	if err != nil {
		if authErr, ok := err.(*authhandler.Error); ok && authErr.Code == authhandler.CodeDidPending {
			writeJSON(w, http.StatusAccepted, pendingResponse{
				Status:     "pending_approval",
				Message:    authErr.Message,
				RetryAfter: intDetail(authErr.Details, "retry_after"),
			})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type pendingResponse struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

func intDetail(details map[string]interface{}, key string) int {
	if v, ok := details[key].(int); ok {
		return v
	}
	return 0
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req authhandler.VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &authhandler.Error{Code: authhandler.CodeInvalidRequest, Message: "malformed json body"})
		return
	}

	resp, err := s.handler.Verify(r.Context(), req, clientID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req authhandler.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, &authhandler.Error{Code: authhandler.CodeInvalidRequest, Message: "malformed json body"})
		return
	}

	resp, err := s.handler.Register(r.Context(), req, clientID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, resp)
}
