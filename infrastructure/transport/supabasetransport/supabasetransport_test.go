package supabasetransport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRPCResult_ReturnsData(t *testing.T) {
	data, err := decodeRPCResult("graphcache_execute", `{"data":{"viewer":{"id":"1"}}}`)
	require.NoError(t, err)
	assert.Equal(t, "1", data["viewer"].(map[string]any)["id"])
}

func TestDecodeRPCResult_ReturnsErrorWhenNoData(t *testing.T) {
	_, err := decodeRPCResult("graphcache_execute", `{"errors":[{"message":"boom"}]}`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "graphcache_execute")
}

func TestDecodeRPCResult_RejectsMalformedJSON(t *testing.T) {
	_, err := decodeRPCResult("graphcache_execute", `not json`)
	require.Error(t, err)
}
