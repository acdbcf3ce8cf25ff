package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Gobusters/ectoerror/httperror"
)

// Check maps a non-2xx status to an error. Credential rejections keep their
// upstream status; everything else is a 502.
func (r *Response) Check(source string) error {
	if r.StatusCode >= 200 && r.StatusCode < 300 {
		return nil
	}

	snippet := strings.TrimSpace(string(r.Body))
	if len(snippet) > 256 {
		snippet = snippet[:256]
	}

	switch r.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return httperror.NewHTTPErrorf(r.StatusCode, "%s rejected credentials: %s", source, snippet)
	default:
		return httperror.NewHTTPErrorf(http.StatusBadGateway, "%s returned %d: %s", source, r.StatusCode, snippet)
	}
}

// Decode unmarshals the body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return httperror.NewHTTPErrorf(http.StatusBadGateway, "failed to decode response body: %s", err.Error())
	}
	return nil
}

// Document unmarshals the body into generic JSON for expression evaluation.
// Numbers stay json.Number so ids and amounts survive re-encoding exactly.
func (r *Response) Document() (any, error) {
	if len(r.Body) == 0 {
		return nil, nil
	}
	decoder := json.NewDecoder(bytes.NewReader(r.Body))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return nil, httperror.NewHTTPErrorf(http.StatusBadGateway, "failed to decode response body: %s", err.Error())
	}
	return doc, nil
}

// BuildURL joins path onto base and encodes query.
func BuildURL(base, path string, query url.Values) (string, error) {
	joined, err := url.JoinPath(base, path)
	if err != nil {
		return "", fmt.Errorf("invalid URL %q + %q: %w", base, path, err)
	}
	if len(query) == 0 {
		return joined, nil
	}
	return joined + "?" + query.Encode(), nil
}
