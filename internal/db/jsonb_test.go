package db

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJSONList_ScanNullIsEmpty(t *testing.T) {
	var l JSONList[Pattern]
	require.NoError(t, l.Scan(nil))
	require.NotNil(t, l)
	require.Empty(t, l)

	require.NoError(t, l.Scan([]byte("null")))
	require.NotNil(t, l)
	require.Empty(t, l)
}

func TestJSONList_ScanValues(t *testing.T) {
	var l JSONList[GroundingSource]
	require.NoError(t, l.Scan(`[{"title":"a","uri":"https://a"}]`))
	require.Equal(t, JSONList[GroundingSource]{{Title: "a", URI: "https://a"}}, l)

	require.Error(t, l.Scan(42))
	require.Error(t, l.Scan([]byte("{")))
}

func TestJSONList_NilWritesEmptyArray(t *testing.T) {
	var l JSONList[TranscriptSegment]
	v, err := l.Value()
	require.NoError(t, err)
	require.Equal(t, []byte("[]"), v)

	b, err := json.Marshal(struct {
		T JSONList[TranscriptSegment] `json:"transcript"`
	}{})
	require.NoError(t, err)
	require.JSONEq(t, `{"transcript":[]}`, string(b))
}
