package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListCommand(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewListCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "TC_DISHM_3_2")
	assert.Contains(t, buf.String(), "[TC-DISHM-3.2] StartUpMode functionality with DUT as Server")
}

func TestListCommandJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewListCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{})

	require.NoError(t, cmd.Execute())

	var response struct {
		Status string         `json:"status"`
		Data   []TestCaseInfo `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &response))
	assert.Equal(t, "ok", response.Status)
	require.NotEmpty(t, response.Data)
	assert.Equal(t, "TC_DISHM_3_2", response.Data[0].Name)
}
