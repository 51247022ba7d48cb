package fake_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/vectorstores"
	"github.com/sevigo/ragbench/vectorstores/fake"
)

func TestStore_Search(t *testing.T) {
	s := fake.New()
	s.Add("a", []float32{1, 0}, map[string]any{"name": "Kettle"})
	s.Add("b", []float32{0.9, 0.1}, map[string]any{"name": "Kettle"})
	s.Add("c", []float32{1, 0}, map[string]any{"name": "Toaster"})

	hits, err := s.Search(context.Background(), []float32{1, 0}, 5, vectorstores.WithFilter("name", "Kettle"))
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "a", hits[0].ID)
	assert.Equal(t, "b", hits[1].ID)
	assert.Nil(t, hits[0].Vector)

	hits, err = s.Search(context.Background(), []float32{1, 0}, 1, vectorstores.WithVectors())
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, []float32{1, 0}, hits[0].Vector)
	assert.Len(t, s.Searches(), 2)
}

func TestStore_Errors(t *testing.T) {
	s := fake.New()
	_, err := s.Search(context.Background(), []float32{1}, 0)
	require.ErrorIs(t, err, vectorstores.ErrInvalidLimit)

	s.Err = errors.New("down")
	_, err = s.Search(context.Background(), []float32{1}, 1)
	require.EqualError(t, err, "down")
}
