package rpc

import (
	"encoding/json"
	"net/http"
)

type protocolRequest struct {
	ProtocolID uint64 `json:"protocolId"`
	Name       string `json:"name"`
}

type adapterRequest struct {
	ProtocolID uint64 `json:"protocolId"`
	Asset      string `json:"asset"`
}

type activeRequest struct {
	ProtocolID uint64 `json:"protocolId"`
}

// Adapter registration is not exposed over HTTP: adapters are in-process
// capabilities wired by the operator at boot. The HTTP surface covers naming,
// activation, and removal.

func (s *Server) handleRegisterProtocol(w http.ResponseWriter, r *http.Request) {
	var req protocolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.registry.RegisterProtocol(s.owner, req.ProtocolID, req.Name); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"protocolId": req.ProtocolID,
		"name":       req.Name,
	})
}

func (s *Server) handleSetActiveProtocol(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := s.registry.SetActiveProtocol(s.owner, req.ProtocolID); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activeProtocolId": req.ProtocolID,
	})
}

func (s *Server) handleRemoveAdapter(w http.ResponseWriter, r *http.Request) {
	var req adapterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	asset, err := parseAddressString(req.Asset)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.registry.RemoveAdapter(s.owner, req.ProtocolID, asset); err != nil {
		respondEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"protocolId": req.ProtocolID,
		"asset":      formatAddress(asset),
	})
}

func (s *Server) handleActiveProtocol(w http.ResponseWriter, _ *http.Request) {
	id := s.registry.ActiveProtocolID()
	name := ""
	if id != 0 {
		name, _ = s.registry.ProtocolName(id)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activeProtocolId": id,
		"name":             name,
	})
}
