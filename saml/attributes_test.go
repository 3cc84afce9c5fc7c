package saml

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAttributes_Get(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	attrs := Attributes{
		"email":      []AttributeValue{{Value: "a@example.com"}, {Value: "b@example.com"}},
		"middleName": []AttributeValue{{Nil: true}},
		"empty":      nil,
	}

	assert.Equal("a@example.com", attrs.Get("email"))
	assert.Equal("", attrs.Get("middleName"))
	assert.Equal("", attrs.Get("empty"))
	assert.Equal("", attrs.Get("missing"))
}

func TestAttributes_GetAll(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	attrs := Attributes{
		"roles": []AttributeValue{{Value: "admin"}, {Nil: true}, {Value: "user"}},
	}

	assert.Equal([]string{"admin", "user"}, attrs.GetAll("roles"))
	assert.Empty(attrs.GetAll("missing"))
}

func TestAttributes_Names(t *testing.T) {
	t.Parallel()
	assert := assert.New(t)

	attrs := Attributes{"a": nil, "b": nil}
	names := attrs.Names()
	assert.ElementsMatch([]string{"a", "b"}, names)
}
