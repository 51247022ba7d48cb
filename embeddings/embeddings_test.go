package embeddings_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sevigo/ragbench/embeddings"
	"github.com/sevigo/ragbench/embeddings/fake"
)

func TestBatcher_EmbedDocuments(t *testing.T) {
	ctx := context.Background()
	client := fake.NewEmbedder(8)
	batcher, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(2))
	require.NoError(t, err)

	texts := []string{"red shoe", "blue\nshoe", "green hat", "red hat", "scarf"}
	vectors, err := batcher.EmbedDocuments(ctx, texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	for i, text := range []string{"red shoe", "blue shoe", "green hat", "red hat", "scarf"} {
		assert.Equal(t, fake.Vector(text, 8), vectors[i], "vector %d must keep input order", i)
	}
	assert.Equal(t, len(texts), client.Calls())
	assert.Contains(t, client.Texts(), "blue shoe", "newlines are stripped by default")
}

func TestBatcher_Errors(t *testing.T) {
	ctx := context.Background()

	t.Run("empty query", func(t *testing.T) {
		batcher, err := embeddings.NewEmbedder(fake.NewEmbedder(4))
		require.NoError(t, err)
		_, err = batcher.EmbedQuery(ctx, "   ")
		require.ErrorIs(t, err, embeddings.ErrEmptyText)
	})

	t.Run("backend failure", func(t *testing.T) {
		client := fake.NewEmbedder(4)
		client.Err = errors.New("down")
		batcher, err := embeddings.NewEmbedder(client)
		require.NoError(t, err)
		_, err = batcher.EmbedDocuments(ctx, []string{"a", "b"})
		require.ErrorContains(t, err, "down")
	})

	t.Run("double wrap", func(t *testing.T) {
		batcher, err := embeddings.NewEmbedder(fake.NewEmbedder(4))
		require.NoError(t, err)
		_, err = embeddings.NewEmbedder(batcher)
		require.ErrorIs(t, err, embeddings.ErrAlreadyBatched)
	})

	t.Run("no documents", func(t *testing.T) {
		batcher, err := embeddings.NewEmbedder(fake.NewEmbedder(4))
		require.NoError(t, err)
		vectors, err := batcher.EmbedDocuments(ctx, nil)
		require.NoError(t, err)
		assert.Empty(t, vectors)
	})
}
