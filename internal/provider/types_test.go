package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBatch_Failure(t *testing.T) {
	resp, err := decodeBatch([]byte(`{"status":"failed","msg":"no issuee"}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Failure)
	assert.Nil(t, resp.Results)
	assert.Equal(t, "failed", resp.Failure.Status)
	assert.Equal(t, "no issuee", resp.Failure.Msg)
}

func TestDecodeBatch_FailureWithoutMsgKeepsBody(t *testing.T) {
	resp, err := decodeBatch([]byte(`{"name":"TypeError"}`))
	require.NoError(t, err)
	require.NotNil(t, resp.Failure)
	assert.Equal(t, `{"name":"TypeError"}`, resp.Failure.Msg)
}

func TestDecodeBatch_Results(t *testing.T) {
	body := `[
		{"id":"10001:00001:1Z1","tokenId":"0xabc:7"},
		{"id":"10001:00001:1Z2","tokenId":"queued","nodeId":"node-1","emissionsRequestUuid":"uuid-1"},
		{"id":"10001:00001:1Z3","error":"cannot issue"},
		{"id":"10001:00001:1Z4","error":{"code":42}},
		{"id":"10001:00001:1Z5","error":null}
	]`

	resp, err := decodeBatch([]byte(body))
	require.NoError(t, err)
	assert.Nil(t, resp.Failure)
	require.Len(t, resp.Results, 5)

	assert.Equal(t, "0xabc:7", resp.Results[0].TokenID)
	assert.False(t, resp.Results[0].Queued())

	assert.True(t, resp.Results[1].Queued())
	assert.Equal(t, "node-1", resp.Results[1].NodeID)
	assert.Equal(t, "uuid-1", resp.Results[1].EmissionsRequestUUID)

	assert.Equal(t, "cannot issue", resp.Results[2].Error)
	assert.Equal(t, `{"code":42}`, resp.Results[3].Error)
	assert.Empty(t, resp.Results[4].Error)
}

func TestDecodeBatch_NumericTokenID(t *testing.T) {
	resp, err := decodeBatch([]byte(`[{"id":"10001:00001:1Z1","tokenId":42,"nodeId":"node-1"},{"id":"10001:00001:1Z2","tokenId":null,"error":"bad"}]`))
	require.NoError(t, err)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "42", resp.Results[0].TokenID)
	assert.False(t, resp.Results[0].Queued())
	assert.Empty(t, resp.Results[1].TokenID)
	assert.Equal(t, "bad", resp.Results[1].Error)
}

func TestDecodeBatch_EmptyArray(t *testing.T) {
	resp, err := decodeBatch([]byte(`[]`))
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestDecodeBatch_Invalid(t *testing.T) {
	for _, body := range []string{"", "   ", "<html>bad gateway</html>", `"text"`, `[{"id":`} {
		_, err := decodeBatch([]byte(body))
		assert.True(t, errors.Is(err, ErrInvalidResponse), "body %q: %v", body, err)
	}
}

func TestTokenStatus_Resolved(t *testing.T) {
	tok, ok := (&TokenStatus{Status: "success", Token: &Token{TokenID: "0xabc:9"}}).Resolved()
	assert.True(t, ok)
	assert.Equal(t, "0xabc:9", tok)

	for _, ts := range []*TokenStatus{
		nil,
		{Status: "pending"},
		{Status: "success"},
		{Status: "success", Token: &Token{}},
		{Status: "failed", Token: &Token{TokenID: "x"}},
	} {
		_, ok := ts.Resolved()
		assert.False(t, ok, "%+v", ts)
	}
}
