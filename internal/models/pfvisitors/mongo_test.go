package pfvisitors

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoLedger(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	ctx := context.Background()
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	newLedger := func(mt *mtest.T) (*MongoLedger, string) {
		return NewMongoLedger(mt.Client, mt.DB.Name(), mt.Coll.Name()), mt.DB.Name() + "." + mt.Coll.Name()
	}

	mt.Run("ensure creates the unique index", func(mt *mtest.T) {
		ledger, _ := newLedger(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		assert.NoError(mt, ledger.Ensure(ctx))
	})

	mt.Run("find decodes the document", func(mt *mtest.T) {
		ledger, ns := newLedger(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: primitive.NewObjectID()},
			{Key: "ip_address", Value: "1.2.3.4"},
			{Key: "first_visit", Value: primitive.NewDateTimeFromTime(at)},
			{Key: "last_visit", Value: primitive.NewDateTimeFromTime(at.Add(5 * time.Hour))},
			{Key: "visit_count", Value: int32(2)},
			{Key: "geo", Value: bson.D{
				{Key: "city", Value: "Pune"},
				{Key: "latitude", Value: 18.5},
			}},
		}))

		visitor, err := ledger.Find(ctx, "1.2.3.4")
		require.NoError(mt, err)
		assert.Equal(mt, "1.2.3.4", visitor.IPAddress)
		assert.Equal(mt, 2, visitor.VisitCount)
		assert.True(mt, visitor.FirstVisit.Equal(at))
		assert.True(mt, visitor.LastVisit.Equal(at.Add(5*time.Hour)))
		assert.Equal(mt, map[string]any{"city": "Pune", "latitude": 18.5}, visitor.Geo.Fields())
	})

	mt.Run("find without document", func(mt *mtest.T) {
		ledger, ns := newLedger(mt)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := ledger.Find(ctx, "1.2.3.4")
		assert.ErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("find storage failure", func(mt *mtest.T) {
		ledger, _ := newLedger(mt)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code: 13, Name: "Unauthorized", Message: "not authorized",
		}))

		_, err := ledger.Find(ctx, "1.2.3.4")
		assert.Error(mt, err)
		assert.NotErrorIs(mt, err, ErrNotFound)
	})

	mt.Run("insert", func(mt *mtest.T) {
		ledger, _ := newLedger(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		require.NoError(mt, ledger.Insert(ctx, "1.2.3.4", Geo{City: strPtr("Pune")}, at))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		assert.Equal(mt, "insert", started.CommandName)
		doc := started.Command.Lookup("documents", "0").Document()
		assert.Equal(mt, "1.2.3.4", doc.Lookup("ip_address").StringValue())
		assert.EqualValues(mt, 1, doc.Lookup("visit_count").AsInt64())
		assert.Equal(mt, doc.Lookup("first_visit").DateTime(), doc.Lookup("last_visit").DateTime())
		assert.Equal(mt, "Pune", doc.Lookup("geo", "city").StringValue())
		_, err := doc.LookupErr("geo", "region")
		assert.Error(mt, err, "absent geo fields are omitted")
	})

	mt.Run("insert duplicate", func(mt *mtest.T) {
		ledger, _ := newLedger(mt)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index: 0, Code: 11000, Message: "E11000 duplicate key error",
		}))

		assert.ErrorIs(mt, ledger.Insert(ctx, "1.2.3.4", Geo{}, at), ErrDuplicate)
	})

	mt.Run("touch increments", func(mt *mtest.T) {
		ledger, _ := newLedger(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		require.NoError(mt, ledger.Touch(ctx, "1.2.3.4", at))

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		update := started.Command.Lookup("updates", "0", "u").Document()
		assert.EqualValues(mt, 1, update.Lookup("$inc", "visit_count").AsInt64())
		_, err := update.LookupErr("$set", "geo")
		assert.Error(mt, err, "touch never rewrites geo")
		_, err = update.LookupErr("$set", "first_visit")
		assert.Error(mt, err, "touch never rewrites first_visit")
	})

	mt.Run("touch without match", func(mt *mtest.T) {
		ledger, _ := newLedger(mt)
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		assert.ErrorIs(mt, ledger.Touch(ctx, "1.2.3.4", at), ErrNotFound)
	})
}
