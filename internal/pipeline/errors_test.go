package pipeline

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	cause := errors.New("cause")

	assert.Equal(t, "schema error at row 4: cause", (&Error{Kind: KindSchema, Row: 4, Err: cause}).Error())
	assert.Equal(t, "input error for in.csv: cause", (&Error{Kind: KindInput, Path: "in.csv", Err: cause}).Error())
	assert.Equal(t, "output error", (&Error{Kind: KindOutput}).Error())
}

func TestIsKind(t *testing.T) {
	cause := errors.New("cause")
	err := fmt.Errorf("wrapped: %w", &Error{Kind: KindLookup, Err: cause})

	assert.True(t, IsKind(err, KindLookup))
	assert.False(t, IsKind(err, KindSchema))
	assert.False(t, IsKind(cause, KindLookup))
	assert.False(t, IsKind(nil, KindLookup))
	assert.ErrorIs(t, err, cause)
}
