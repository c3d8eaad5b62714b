package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"google.golang.org/protobuf/types/known/structpb"
)

type errorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`

	// Set when a detection was recorded before the failure.
	Accepted  bool   `json:"accepted,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	UnknownID string `json:"unknown_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: code, Message: msg})
}

// decode fills v from a JSON body, or from a protobuf google.protobuf.Struct
// body whose fields use the JSON names. On failure it writes a 400 and
// returns false.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	var body io.Reader = io.LimitReader(r.Body, maxRequestBody)
	if isProtobuf(r) {
		data, err := structBodyToJSON(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_proto", "invalid protobuf body")
			return false
		}
		body = bytes.NewReader(data)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json", "invalid JSON body")
		return false
	}
	return true
}

// respond answers in the encoding the request used.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !isProtobuf(r) {
		writeJSON(w, status, v)
		return
	}
	msg, err := toStruct(v)
	if err != nil {
		s.logger.ErrorContext(r.Context(), "encode protobuf response", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
		return
	}
	writeProto(w, status, msg)
}

func structBodyToJSON(r *http.Request) ([]byte, error) {
	var msg structpb.Struct
	if err := readProto(r, &msg); err != nil {
		return nil, err
	}
	return json.Marshal(msg.AsMap())
}

// toStruct converts any JSON-encodable value into a Struct with the same
// field names.
func toStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("response is not an object: %w", err)
	}
	return structpb.NewStruct(m)
}
