package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteOK(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeOK(buf, map[string]string{"body": "<a & b>"}))

	assert.Contains(t, buf.String(), `"body": "<a & b>"`)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
}

func TestWriteFailure(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeFailure(buf, []int{1}, ErrCodeFailed, "1 scenario(s) failed", "details"))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeFailed, resp.Error.Code)
	assert.Equal(t, "1 scenario(s) failed", resp.Error.Message)
	assert.Equal(t, "details", resp.Error.Details)
	assert.Equal(t, []any{float64(1)}, resp.Data)
}

func TestWriteFailure_OmitsEmptyData(t *testing.T) {
	buf := &bytes.Buffer{}
	require.NoError(t, writeFailure(buf, nil, ErrCodeSettings, "bad", nil))

	assert.NotContains(t, buf.String(), `"data"`)
	assert.NotContains(t, buf.String(), `"details"`)
}
