package proxy

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/naumanni/naumanni-server/pkg/proxy/types"
)

// WriteJSONResponse writes data as a JSON response with statusCode.
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("failed to encode JSON response: %w", err)
	}
	return nil
}

// WriteErrorResponse writes errResp with its HTTP status code.
func WriteErrorResponse(w http.ResponseWriter, errResp *types.ErrorResponse) error {
	return WriteJSONResponse(w, errResp.Error.HTTPStatusCode(), errResp)
}

// WriteError writes the envelope for err.
func WriteError(w http.ResponseWriter, err error) error {
	return WriteErrorResponse(w, HandleError(err))
}
