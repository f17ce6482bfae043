package convertguru

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// StatusGatewayTimeout is the Cloudflare "a timeout occurred" status the
// convert endpoint returns for long conversions.
const StatusGatewayTimeout = 524

// NormalizeConvertBody maps a convert response to a JSON body. 200 and 400
// bodies pass through unchanged since 400 carries an application error.
// Every other status is replaced by a locally built {"error": ...} body and
// synthesized is true, so callers can tell it apart from an error the
// service reported itself.
func NormalizeConvertBody(status int, body string) (normalized string, synthesized bool) {
	var message string
	switch status {
	case http.StatusOK, http.StatusBadRequest:
		return body, false
	case StatusGatewayTimeout:
		message = "Error HTTP 524 - operation takes too long to complete, timeout occured."
	case http.StatusInternalServerError:
		message = "Error HTTP 500 - operation takes too long to complete, internal server error."
	default:
		message = fmt.Sprintf("Error HTTP %d.", status)
	}
	raw, _ := json.Marshal(map[string]string{"error": message})
	return string(raw), true
}
