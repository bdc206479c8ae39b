package mongo

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/2beens/exercisetracker/internal/tracker"
)

func TestBuildLogFilter(t *testing.T) {
	from, _ := tracker.ParseDate("2024-01-10")
	to, _ := tracker.ParseDate("2024-01-31")
	fromTime := time.Date(2024, time.January, 10, 0, 0, 0, 0, time.UTC)
	toTime := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name           string
		query          tracker.LogQuery
		expectedFilter bson.D
	}{
		{
			name:           "user only",
			query:          tracker.LogQuery{UserID: "u1"},
			expectedFilter: bson.D{{Key: "userId", Value: "u1"}},
		},
		{
			name:  "between",
			query: tracker.LogQuery{UserID: "u1", From: &from, To: &to},
			expectedFilter: bson.D{
				{Key: "userId", Value: "u1"},
				{Key: "date", Value: bson.D{{Key: "$gte", Value: fromTime}, {Key: "$lte", Value: toTime}}},
			},
		},
		{
			name:  "from only",
			query: tracker.LogQuery{UserID: "u1", From: &from},
			expectedFilter: bson.D{
				{Key: "userId", Value: "u1"},
				{Key: "date", Value: bson.D{{Key: "$gte", Value: fromTime}}},
			},
		},
		{
			name:  "to only",
			query: tracker.LogQuery{UserID: "u1", To: &to},
			expectedFilter: bson.D{
				{Key: "userId", Value: "u1"},
				{Key: "date", Value: bson.D{{Key: "$lte", Value: toTime}}},
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			filter, opts := buildLogFilter(tc.query)
			assert.Equal(t, tc.expectedFilter, filter)
			assert.Nil(t, opts.Limit)
			assert.Equal(t, bson.D{{Key: "_id", Value: 1}}, opts.Sort)
		})
	}
}

func TestBuildLogFilter_LimitAndProjection(t *testing.T) {
	_, opts := buildLogFilter(tracker.LogQuery{UserID: "u1", Limit: 1})
	require.NotNil(t, opts.Limit)
	assert.Equal(t, int64(1), *opts.Limit)
	assert.Equal(t, bson.D{
		{Key: "_id", Value: 0},
		{Key: "description", Value: 1},
		{Key: "duration", Value: 1},
		{Key: "date", Value: 1},
	}, opts.Projection)
}
