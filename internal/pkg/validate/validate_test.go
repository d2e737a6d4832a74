package validate

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Mode  string  `validate:"oneof=jwt opaque"`
	Rate  float64 `validate:"gt=0"`
	Burst int     `validate:"gt=0"`
}

func TestStruct_OK(t *testing.T) {
	assert.NoError(t, Struct(sample{Mode: "jwt", Rate: 1, Burst: 1}))
}

func TestStruct_ListsEveryField(t *testing.T) {
	err := Struct(sample{Mode: "cookie", Rate: 1})

	var verr *Error
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	assert.Equal(t, FieldError{Field: "Mode", Tag: "oneof", Param: "jwt opaque"}, verr.Fields[0])
	assert.Equal(t, "Burst", verr.Fields[1].Field)
	assert.EqualError(t, err, "Mode must satisfy oneof=jwt opaque; Burst must satisfy gt=0")
}

func TestVar(t *testing.T) {
	assert.NoError(t, Var("a@b.io", "email"))

	err := Var("not-an-email", "email")
	var verr *Error
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "email", verr.Fields[0].Tag)
}
