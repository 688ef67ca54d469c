package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Title    string `json:"title" validate:"notblank"`
	Progress *int   `json:"progress" validate:"omitempty,min=0,max=100"`
	Mode     string `json:"mode" validate:"required,oneof=direct broadcast"`
}

func TestStruct(t *testing.T) {
	ok := 40
	require.NoError(t, Struct(sample{Title: "x", Progress: &ok, Mode: "direct"}))

	bad := 120
	err := Struct(sample{Title: "   ", Progress: &bad, Mode: "shout"})
	var verr *Error
	require.ErrorAs(t, err, &verr)

	fields := verr.FieldMap()
	assert.Equal(t, "title cannot be blank", fields["title"])
	assert.Contains(t, fields, "progress")
	assert.Contains(t, fields, "mode")
}

func TestGinValidatorSkipsNonStructs(t *testing.T) {
	v := GinValidator{}
	assert.NoError(t, v.ValidateStruct([]int{1, 2}))
	assert.NoError(t, v.ValidateStruct(nil))
	assert.Error(t, v.ValidateStruct(&sample{}))
}
