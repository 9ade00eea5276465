package bridge_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/GrowGrammers/authbridge/bridge"
)

func TestAPIRequestValidate(t *testing.T) {
	require.NoError(t, bridge.APIRequest{URL: "/api/profile", Method: "GET"}.Validate())
	require.NoError(t, bridge.APIRequest{URL: "/api/profile", Method: "PATCH"}.Validate())

	err := bridge.APIRequest{Method: "GET"}.Validate()
	require.ErrorIs(t, err, bridge.InvalidRequestErr)

	err = bridge.APIRequest{URL: "/api/profile", Method: "HEAD"}.Validate()
	require.ErrorIs(t, err, bridge.InvalidRequestErr)
	require.Contains(t, err.Error(), "HEAD")
}

func TestAPIResponseJSON(t *testing.T) {
	resp := bridge.NewAPIResponse(true, 200, "OK", nil, []byte(`{"success":true,"message":"hello"}`))

	var env bridge.Envelope
	require.NoError(t, resp.JSON(&env))
	require.True(t, env.Success)
	require.Equal(t, "hello", env.Message)
}

func TestAPIResponseJSONDescriptiveErrorOnGarbage(t *testing.T) {
	resp := bridge.NewAPIResponse(true, 200, "OK", nil, []byte("<html>not json</html>"))

	var env bridge.Envelope
	err := resp.JSON(&env)
	require.Error(t, err)
	require.Contains(t, err.Error(), "200")
	require.Contains(t, err.Error(), "not valid JSON")
	require.Contains(t, err.Error(), "<html>")
}

func TestAPIResponseText(t *testing.T) {
	resp := bridge.NewAPIResponse(false, 500, "Internal Server Error", nil, []byte("boom"))
	require.Equal(t, "boom", resp.Text())
}
