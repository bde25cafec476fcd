package taskjson_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/costline/costline/modules/estimation/infrastructure/taskjson"
)

func TestParse(t *testing.T) {
	raw := []byte(`{
		"tasks": [
			{"external_unique_id": 1, "outline_level": 1, "title": "Root"},
			{"external_unique_id": 2, "parent_external_id": 1, "outline_level": 2, "title": "Child",
			 "assignments": [{"resource_code": "DEV", "best_estimate": "10", "likely_estimate": "20", "worst_estimate": "40"}]}
		]
	}`)
	res, err := taskjson.New().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Len(t, res.Tasks, 2)
	require.Equal(t, 1, res.ResourceCount)
	require.NotNil(t, res.Tasks[1].ParentExternalID)
	require.Equal(t, int64(1), *res.Tasks[1].ParentExternalID)
	require.Len(t, res.Tasks[1].Assignments, 1)
	require.Equal(t, "DEV", res.Tasks[1].Assignments[0].ResourceCode)
}

func TestParse_ExplicitResourceListWins(t *testing.T) {
	raw := []byte(`{"tasks": [], "resources": ["DEV", "QA", "PM"]}`)
	res, err := taskjson.New().Parse(context.Background(), raw)
	require.NoError(t, err)
	require.Equal(t, 3, res.ResourceCount)
}

func TestParse_Malformed(t *testing.T) {
	_, err := taskjson.New().Parse(context.Background(), []byte(`{not json`))
	require.Error(t, err)
}
