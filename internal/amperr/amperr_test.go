package amperr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAndError(t *testing.T) {
	err := NotFound("store.Get", "object not found")
	require.Error(t, err)
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Contains(t, err.Error(), "store.Get")
	assert.Contains(t, err.Error(), "object not found")
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("store.Create", cause)

	assert.True(t, errors.Is(err, cause))
	assert.Equal(t, KindStorageError, KindOf(err))
	assert.Contains(t, err.Error(), "disk full")
}

func TestIs(t *testing.T) {
	err := EmbeddingDisabled("embeddings.Embed")
	assert.True(t, Is(err, KindEmbeddingDisabled))
	assert.False(t, Is(err, KindTimeout))
}

func TestKindOfNonAmpErr(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain error")))
}

func TestConstructors(t *testing.T) {
	cases := []struct {
		err  error
		kind Kind
	}{
		{InvalidInput("op", "bad input"), KindInvalidInput},
		{Conflict("op", "already exists"), KindConflict},
		{Timeout("op", errors.New("deadline")), KindTimeout},
		{EmbeddingError("op", errors.New("429")), KindEmbeddingError},
		{GraphUnreachable("op", "no path"), KindGraphUnreachable},
		{Cancelled("op", errors.New("context cancelled")), KindCancelled},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.kind, KindOf(tc.err))
	}
}
