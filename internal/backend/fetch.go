package backend

import (
	"io"
	"net/http"
)

// Fetch runs a prepared request against a third-party provider and decodes
// the JSON body into out, applying the same failure classification as the
// owning-backend calls. Provider clients (shipping rates, payment methods)
// share this so every outbound HTTP path speaks the one error taxonomy.
func Fetch(hc *http.Client, req *http.Request, out any) error {
	resp, err := hc.Do(req)
	if err != nil {
		return classifyTransport(req.Context(), err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return classifyTransport(req.Context(), err)
	}

	return decodeReply(&reply{
		status:      resp.StatusCode,
		contentType: resp.Header.Get("Content-Type"),
		retryAfter:  resp.Header.Get("Retry-After"),
		body:        body,
	}, out)
}
