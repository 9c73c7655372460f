package ciclient

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBuildbot_NormalizesResults(t *testing.T) {
	o, err := DecodeBuildbot([]byte(`{"sha":"abc","results":"success","url":"https://ci/1"}`))
	require.NoError(t, err)
	assert.Equal(t, "abc", o.SHA)
	assert.Equal(t, VerdictSuccess, o.Verdict)

	o, err = DecodeBuildbot([]byte(`{"sha":"abc","results":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, VerdictFailure, o.Verdict)
}

func TestDecodeBuildbot_BadJSONErrors(t *testing.T) {
	_, err := DecodeBuildbot([]byte(`not json`))
	assert.Error(t, err)
}

func TestDecodeTravis_NormalizesState(t *testing.T) {
	o, err := DecodeTravis([]byte(`{"commit":"deadbeef","state":"errored","build_url":"https://travis/2"}`))
	require.NoError(t, err)
	assert.Equal(t, "deadbeef", o.SHA)
	assert.Equal(t, VerdictError, o.Verdict)
	assert.Equal(t, "https://travis/2", o.URL)
}

func TestDecodeJenkins_MapsAbortedToError(t *testing.T) {
	o, err := DecodeJenkins([]byte(`{"sha":"cafef00d","verdict":"ABORTED","url":"https://jenkins/5"}`))
	require.NoError(t, err)
	assert.Equal(t, VerdictError, o.Verdict)
}

func TestDecodeJenkins_UnknownVerdictIsFailure(t *testing.T) {
	o, err := DecodeJenkins([]byte(`{"sha":"x","verdict":"weird"}`))
	require.NoError(t, err)
	assert.Equal(t, VerdictFailure, o.Verdict)
}

func TestDecodeSolano_SharesJenkinsShape(t *testing.T) {
	o, err := DecodeSolano([]byte(`{"sha":"x","verdict":"SUCCESS"}`))
	require.NoError(t, err)
	assert.Equal(t, VerdictSuccess, o.Verdict)
}
