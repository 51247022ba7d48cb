package qdrant_test

import (
	"context"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/sevigo/ragbench/vectorstores"
	"github.com/sevigo/ragbench/vectorstores/qdrant"
)

type fakePoints struct {
	req  *pb.SearchPoints
	resp *pb.SearchResponse
	err  error
}

func (f *fakePoints) Search(_ context.Context, in *pb.SearchPoints, _ ...grpc.CallOption) (*pb.SearchResponse, error) {
	f.req = in
	return f.resp, f.err
}

func str(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func TestStore_Search(t *testing.T) {
	points := &fakePoints{resp: &pb.SearchResponse{Result: []*pb.ScoredPoint{
		{
			Id:    &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "7b7c"}},
			Score: 0.91,
			Payload: map[string]*pb.Value{
				"title": str("Loud kettle"),
				"comments": {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: []*pb.Value{
					{Kind: &pb.Value_StructValue{StructValue: &pb.Struct{Fields: map[string]*pb.Value{"text": str("agreed")}}}},
				}}}},
				"score": {Kind: &pb.Value_IntegerValue{IntegerValue: 4}},
			},
		},
		{
			Id:    &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: 42}},
			Score: 0.5,
		},
	}}}

	store, err := qdrant.NewWithClient(points, qdrant.WithCollectionName("reddit-posts"))
	require.NoError(t, err)

	hits, err := store.Search(context.Background(), []float32{0.1, 0.2}, 30,
		vectorstores.WithFilter("name", "Kettle"), vectorstores.WithVectors())
	require.NoError(t, err)

	require.NotNil(t, points.req)
	assert.Equal(t, "reddit-posts", points.req.GetCollectionName())
	assert.Equal(t, uint64(30), points.req.GetLimit())
	assert.True(t, points.req.GetWithVectors().GetEnable())
	assert.True(t, points.req.GetWithPayload().GetEnable())
	assert.Nil(t, points.req.ScoreThreshold)
	must := points.req.GetFilter().GetMust()
	require.Len(t, must, 1)
	assert.Equal(t, "name", must[0].GetField().GetKey())
	assert.Equal(t, "Kettle", must[0].GetField().GetMatch().GetKeyword())

	require.Len(t, hits, 2)
	assert.Equal(t, "7b7c", hits[0].ID)
	assert.Equal(t, "Loud kettle", hits[0].String("title"))
	assert.Equal(t, int64(4), hits[0].Payload["score"])
	assert.Equal(t, []any{map[string]any{"text": "agreed"}}, hits[0].Payload["comments"])
	assert.Equal(t, "42", hits[1].ID)
	assert.Empty(t, hits[1].Payload)
}

func TestStore_SearchErrors(t *testing.T) {
	points := &fakePoints{err: status.Error(codes.NotFound, "no collection")}
	store, err := qdrant.NewWithClient(points, qdrant.WithCollectionName("missing"))
	require.NoError(t, err)

	_, err = store.Search(context.Background(), []float32{1}, 5)
	require.ErrorIs(t, err, vectorstores.ErrCollectionNotFound)

	_, err = store.Search(context.Background(), []float32{1}, 0)
	require.ErrorIs(t, err, vectorstores.ErrInvalidLimit)

	_, err = store.Search(context.Background(), nil, 5)
	require.ErrorIs(t, err, vectorstores.ErrEmptyVector)

	points.err = status.Error(codes.Unavailable, "down")
	_, err = store.Search(context.Background(), []float32{1}, 5)
	require.Error(t, err)
	assert.NotErrorIs(t, err, vectorstores.ErrCollectionNotFound)
}

func TestNew_Validation(t *testing.T) {
	_, err := qdrant.NewWithClient(&fakePoints{})
	require.ErrorIs(t, err, qdrant.ErrInvalidOptions)

	_, err = qdrant.NewWithClient(&fakePoints{}, qdrant.WithCollectionName("c"), qdrant.WithURL("ftp://host:1"))
	require.ErrorIs(t, err, qdrant.ErrInvalidOptions)
}
