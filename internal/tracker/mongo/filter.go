package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/2beens/exercisetracker/internal/tracker"
)

// buildLogFilter returns the filter and find options selecting the log entries matching q.
// Exactly one date range condition is added, depending on which bounds are set.
func buildLogFilter(q tracker.LogQuery) (bson.D, *options.FindOptions) {
	filter := bson.D{{Key: "userId", Value: q.UserID}}

	switch q.Range() {
	case tracker.RangeBetween:
		filter = append(filter, bson.E{Key: "date", Value: bson.D{
			{Key: "$gte", Value: q.From.Time},
			{Key: "$lte", Value: q.To.Time},
		}})
	case tracker.RangeFrom:
		filter = append(filter, bson.E{Key: "date", Value: bson.D{{Key: "$gte", Value: q.From.Time}}})
	case tracker.RangeTo:
		filter = append(filter, bson.E{Key: "date", Value: bson.D{{Key: "$lte", Value: q.To.Time}}})
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "_id", Value: 1}}).
		SetProjection(bson.D{
			{Key: "_id", Value: 0},
			{Key: "description", Value: 1},
			{Key: "duration", Value: 1},
			{Key: "date", Value: 1},
		})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}

	return filter, opts
}
