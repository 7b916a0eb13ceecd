package application_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/concourse-proxy/internal/application"
)

type item struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

func decodeItems(t *testing.T, body []byte) []item {
	t.Helper()
	var items []item
	require.NoError(t, json.Unmarshal(body, &items))
	return items
}

func TestMergeByID_FirstOccurrenceWins(t *testing.T) {
	a := []byte(`[{"id":1,"name":"a1"},{"id":2,"name":"a2"}]`)
	b := []byte(`[{"id":2,"name":"b2"},{"id":3,"name":"b3"}]`)

	merged := decodeItems(t, application.MergeByID(a, b))

	assert.Equal(t, []item{{1, "a1"}, {2, "a2"}, {3, "b3"}}, merged)
}

func TestMergeByID_ToleratesUnusableNext(t *testing.T) {
	a := []byte(`[{"id":1,"name":"a1"}]`)

	for name, b := range map[string][]byte{
		"unparseable":    []byte("<html>502 Bad Gateway</html>"),
		"empty":          nil,
		"null":           []byte("null"),
		"null newline":   []byte("null\n"),
		"object":         []byte(`{"id":2}`),
		"truncated json": []byte(`[{"id":2`),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, []item{{1, "a1"}}, decodeItems(t, application.MergeByID(a, b)))
		})
	}
}

func TestMergeByID_UnusableAccumulatorIsEmpty(t *testing.T) {
	merged := application.MergeByID([]byte("null\n"), []byte(`[{"id":5,"name":"x"}]`))

	assert.Equal(t, []item{{5, "x"}}, decodeItems(t, merged))
}

func TestMergeByID_KeepsAccumulatorDuplicates(t *testing.T) {
	a := []byte(`[{"id":1,"name":"x"},{"id":1,"name":"y"}]`)

	merged := decodeItems(t, application.MergeByID(a, []byte(`[{"id":1,"name":"z"}]`)))

	assert.Equal(t, []item{{1, "x"}, {1, "y"}}, merged)
}

func TestMergeByID_PreservesItemJSON(t *testing.T) {
	a := []byte(`[{"id":"p1","nested":{"k":[1,2]}}]`)
	b := []byte(`[{"id":"p2","paused":true}]`)

	assert.JSONEq(t,
		`[{"id":"p1","nested":{"k":[1,2]}},{"id":"p2","paused":true}]`,
		string(application.MergeByID(a, b)))
}

func TestMergeAllByID_LeftToRight(t *testing.T) {
	bodies := [][]byte{
		[]byte(`[{"id":1,"name":"team1"}]`),
		[]byte(`[{"id":1,"name":"team2"},{"id":2,"name":"team2"}]`),
		[]byte("null"),
		[]byte(`[{"id":2,"name":"anon"},{"id":3,"name":"anon"}]`),
	}

	merged := decodeItems(t, application.MergeAllByID(bodies))

	assert.Equal(t, []item{{1, "team1"}, {2, "team2"}, {3, "anon"}}, merged)
}

func TestMergeAllByID_NothingUsable(t *testing.T) {
	assert.Equal(t, "[]", string(application.MergeAllByID([][]byte{[]byte("oops"), nil})))
}
