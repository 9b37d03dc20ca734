package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Username string `json:"username" validate:"required,username"`
	Password string `json:"password" validate:"required,min=8"`
}

type line struct {
	ID uint `json:"id" validate:"required"`
}

type order struct {
	Lines []line `json:"lines" validate:"dive"`
}

func TestValidUsername(t *testing.T) {
	for _, name := range []string{"alice", "a.b@c+d-e_f", "Ivan_42"} {
		assert.True(t, ValidUsername(name), name)
	}
	for _, name := range []string{"me", "with space", "semi;colon", ""} {
		assert.False(t, ValidUsername(name), name)
	}
}

func TestValidateStructFieldNames(t *testing.T) {
	err := ValidateStruct(&signup{Email: "nope", Username: "me", Password: "short"})
	require.Error(t, err)

	fe, ok := err.(FieldErrors)
	require.True(t, ok)
	assert.Equal(t, []string{"Enter a valid email address."}, fe["email"])
	assert.Equal(t, []string{"The username \"me\" is not allowed."}, fe["username"])
	assert.Contains(t, fe["password"][0], "at least 8 characters")
}

func TestValidateStructNestedPath(t *testing.T) {
	err := ValidateStruct(&order{Lines: []line{{ID: 1}, {}}})
	require.Error(t, err)

	fe := err.(FieldErrors)
	assert.Equal(t, []string{"This field is required."}, fe["lines[1].id"])
}

func TestValidateStructOK(t *testing.T) {
	assert.NoError(t, ValidateStruct(&signup{Email: "a@b.co", Username: "alice", Password: "longenough"}))
}
