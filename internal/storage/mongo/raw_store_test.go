package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"

	"github.com/JakeFAU/arctic-vacancy-pipeline/internal/vacancy"
)

func rawDoc(id string) vacancy.RawDocument {
	return vacancy.RawDocument{
		ID:             id,
		Body:           json.RawMessage(`{"id": "` + id + `", "name": "Welder", "salary": {"from": 90000, "currency": "RUR"}}`),
		FetchedAt:      time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC),
		SourceRegionID: 1061,
		RunID:          "run-1",
	}
}

func TestRawStore(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("wipe returns deleted count", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 42}))

		n, err := NewWithCollection(mt.Coll).Wipe(context.Background())
		require.NoError(mt, err)
		require.EqualValues(mt, 42, n)
	})

	mt.Run("ensure unique id", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())
		require.NoError(mt, NewWithCollection(mt.Coll).EnsureUniqueID(context.Background()))
	})

	mt.Run("conflicting index is benign", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    85,
			Name:    "IndexOptionsConflict",
			Message: "Index with name: id_unique already exists with different options",
		}))
		err := NewWithCollection(mt.Coll).EnsureUniqueID(context.Background())
		require.ErrorIs(mt, err, vacancy.ErrIndexExists)
	})

	mt.Run("other index failures are reported", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "not authorized",
		}))
		err := NewWithCollection(mt.Coll).EnsureUniqueID(context.Background())
		require.Error(mt, err)
		require.NotErrorIs(mt, err, vacancy.ErrIndexExists)
	})

	mt.Run("insert many success", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		res, err := NewWithCollection(mt.Coll).InsertMany(context.Background(),
			[]vacancy.RawDocument{rawDoc("1"), rawDoc("2"), rawDoc("3")})
		require.NoError(mt, err)
		require.Equal(mt, vacancy.InsertResult{Inserted: 3}, res)

		started := mt.GetStartedEvent()
		require.NotNil(mt, started)
		require.Equal(mt, "insert", started.CommandName)
		ordered, ok := started.Command.Lookup("ordered").BooleanOK()
		require.True(mt, ok)
		require.False(mt, ordered)

		docs, err := started.Command.Lookup("documents").Array().Values()
		require.NoError(mt, err)
		require.Len(mt, docs, 3)
		first := docs[0].Document()
		require.Equal(mt, "1", first.Lookup("id").StringValue())
		require.EqualValues(mt, 1061, first.Lookup(vacancy.FieldSourceRegionID).AsInt64())
		require.Equal(mt, "run-1", first.Lookup(vacancy.FieldRunID).StringValue())
		require.Equal(mt, bson.TypeDateTime, first.Lookup(vacancy.FieldFetchedAt).Type)
	})

	mt.Run("duplicates are counted not returned", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(
			mtest.WriteError{Index: 1, Code: 11000, Message: "E11000 duplicate key error"},
			mtest.WriteError{Index: 2, Code: 11000, Message: "E11000 duplicate key error"},
		))

		res, err := NewWithCollection(mt.Coll).InsertMany(context.Background(),
			[]vacancy.RawDocument{rawDoc("1"), rawDoc("2"), rawDoc("2")})
		require.NoError(mt, err)
		require.Equal(mt, vacancy.InsertResult{Inserted: 1, Duplicates: 2}, res)
	})

	mt.Run("other write errors become insertion errors", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(
			mtest.WriteError{Index: 0, Code: 11000, Message: "E11000 duplicate key error"},
			mtest.WriteError{Index: 1, Code: 2, Message: "bad value"},
		))

		res, err := NewWithCollection(mt.Coll).InsertMany(context.Background(),
			[]vacancy.RawDocument{rawDoc("1"), rawDoc("2"), rawDoc("3")})
		var insErr *vacancy.InsertionError
		require.True(mt, errors.As(err, &insErr))
		require.Equal(mt, 1, insErr.Failed)
		require.Equal(mt, vacancy.InsertResult{Inserted: 1, Duplicates: 1}, res)
	})

	mt.Run("unconvertible body is skipped", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		bad := vacancy.RawDocument{ID: "bad", Body: json.RawMessage(`not json`)}
		res, err := NewWithCollection(mt.Coll).InsertMany(context.Background(),
			[]vacancy.RawDocument{bad, rawDoc("1")})
		var insErr *vacancy.InsertionError
		require.True(mt, errors.As(err, &insErr))
		require.Equal(mt, 1, insErr.Failed)
		require.Equal(mt, 1, res.Inserted)
	})

	mt.Run("scan renders documents without _id", func(mt *mtest.T) {
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{{Key: "id", Value: "1"}, {Key: "name", Value: "Welder"}, {Key: "salary", Value: bson.D{
				{Key: "from", Value: 90000}, {Key: "to", Value: nil}, {Key: "currency", Value: "RUR"},
			}}},
			bson.D{{Key: "id", Value: "2"}, {Key: "name", Value: "Driver"}},
		))

		var got []vacancy.RawVacancy
		err := NewWithCollection(mt.Coll).Scan(context.Background(), func(doc json.RawMessage) error {
			var v vacancy.RawVacancy
			if err := json.Unmarshal(doc, &v); err != nil {
				return err
			}
			got = append(got, v)
			return nil
		})
		require.NoError(mt, err)
		require.Len(mt, got, 2)
		require.Equal(mt, "Welder", got[0].Name)
		require.Equal(mt, 90000.0, *got[0].Salary.From)
		require.Nil(mt, got[0].Salary.To)
		require.Equal(mt, "2", got[1].ID)

		started := mt.GetStartedEvent()
		require.Equal(mt, "find", started.CommandName)
		require.EqualValues(mt, 0, started.Command.Lookup("projection", "_id").AsInt64())
	})
}

func TestClassifyInsert(t *testing.T) {
	t.Parallel()

	inserted, dups, failed, err := classifyInsert(4, nil)
	require.Equal(t, []int{4, 0, 0}, []int{inserted, dups, failed})
	require.NoError(t, err)

	inserted, _, failed, err = classifyInsert(4, errors.New("network down"))
	require.Zero(t, inserted)
	require.Equal(t, 4, failed)
	require.Error(t, err)

	bwe := mongo.BulkWriteException{
		WriteErrors: []mongo.BulkWriteError{{WriteError: mongo.WriteError{Index: 0, Code: 11000}}},
	}
	inserted, dups, failed, err = classifyInsert(3, bwe)
	require.Equal(t, []int{2, 1, 0}, []int{inserted, dups, failed})
	require.NoError(t, err)
}
