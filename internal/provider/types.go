package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrUnavailable wraps connection-level failures. Nothing reached the
	// provider, or its answer was lost, so the call is safe to repeat.
	ErrUnavailable = errors.New("provider: unavailable")

	// ErrInvalidResponse wraps response bodies that could not be decoded.
	ErrInvalidResponse = errors.New("provider: invalid response")

	// ErrRequestFailed wraps non-success HTTP statuses without a usable body.
	ErrRequestFailed = errors.New("provider: request failed")

	// ErrNotFound is returned by TokenStatus when the provider does not know
	// the request yet.
	ErrNotFound = errors.New("provider: request not found")
)

// QueuedTokenID is the token id the provider returns for an issuance it
// deferred to its queue.
const QueuedTokenID = "queued"

// BatchResponse is the decoded answer to a batch submission: exactly one of
// Failure and Results is set.
type BatchResponse struct {
	Failure *BatchFailure
	Results []ResultItem
}

// BatchFailure reports that the provider rejected the whole batch.
type BatchFailure struct {
	Status string `json:"status"`
	Msg    string `json:"msg"`
}

// ResultItem is the provider's outcome for one submitted activity.
type ResultItem struct {
	ID                   string `json:"id"`
	TokenID              string `json:"tokenId,omitempty"`
	NodeID               string `json:"nodeId,omitempty"`
	EmissionsRequestUUID string `json:"emissionsRequestUuid,omitempty"`
	Error                string `json:"error,omitempty"`
}

// Queued reports whether the provider deferred this issuance.
func (r ResultItem) Queued() bool {
	return r.TokenID == QueuedTokenID
}

// UnmarshalJSON accepts a token id or an error of any JSON type; non-string
// values are kept in their JSON text form.
func (r *ResultItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID                   string          `json:"id"`
		TokenID              json.RawMessage `json:"tokenId"`
		NodeID               string          `json:"nodeId"`
		EmissionsRequestUUID string          `json:"emissionsRequestUuid"`
		Error                json.RawMessage `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = ResultItem{
		ID:                   raw.ID,
		TokenID:              stringify(raw.TokenID),
		NodeID:               raw.NodeID,
		EmissionsRequestUUID: raw.EmissionsRequestUUID,
		Error:                stringify(raw.Error),
	}
	return nil
}

func stringify(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// decodeBatch decodes a submission response. An object is a batch failure, an
// array is the per-item result list.
func decodeBatch(body []byte) (*BatchResponse, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidResponse)
	}

	switch body[0] {
	case '{':
		var f BatchFailure
		if err := json.Unmarshal(body, &f); err != nil {
			return nil, fmt.Errorf("%w: batch failure: %v", ErrInvalidResponse, err)
		}
		if f.Msg == "" {
			f.Msg = string(body)
		}
		return &BatchResponse{Failure: &f}, nil
	case '[':
		var items []ResultItem
		if err := json.Unmarshal(body, &items); err != nil {
			return nil, fmt.Errorf("%w: batch results: %v", ErrInvalidResponse, err)
		}
		if items == nil {
			items = []ResultItem{}
		}
		return &BatchResponse{Results: items}, nil
	}
	return nil, fmt.Errorf("%w: unexpected body %.64q", ErrInvalidResponse, body)
}

// TokenStatus is the API server's view of a queued issuance.
type TokenStatus struct {
	Status string `json:"status"`
	Token  *Token `json:"token,omitempty"`
}

// Token is the issued token as reported by the API server.
type Token struct {
	TokenID string `json:"tokenId"`
}

// UnmarshalJSON accepts a token id sent as a JSON string or number. The API
// server stores token ids as numbers.
func (t *Token) UnmarshalJSON(data []byte) error {
	var raw struct {
		TokenID json.RawMessage `json:"tokenId"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	t.TokenID = stringify(raw.TokenID)
	return nil
}

// StatusSuccess is the TokenStatus.Status of a resolved issuance.
const StatusSuccess = "success"

// Resolved returns the token id when the issuance succeeded.
func (s *TokenStatus) Resolved() (string, bool) {
	if s == nil || s.Status != StatusSuccess || s.Token == nil || s.Token.TokenID == "" {
		return "", false
	}
	return s.Token.TokenID, true
}
