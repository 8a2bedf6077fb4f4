package httpapi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateBody_NodeCreateValid(t *testing.T) {
	body := []byte(`{"nodes":[{"name":"node1","mgt":"ipmi","netboot":"pxe"}]}`)
	require.NoError(t, validateBody(nodeCreateSchema, body))
}

func TestValidateBody_NodeCreateMissingRequired(t *testing.T) {
	body := []byte(`{"nodes":[{"name":"node1"}]}`)
	err := validateBody(nodeCreateSchema, body)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validation failed")
}

func TestValidateBody_NodeCreateNotAnObject(t *testing.T) {
	err := validateBody(nodeCreateSchema, []byte(`[]`))
	assert.Error(t, err)
}

func TestValidateBody_NetworkCreateValid(t *testing.T) {
	body := []byte(`{"name":"net1","subnet":"10.0.0.0","netmask":"255.255.255.0"}`)
	require.NoError(t, validateBody(networkCreateSchema, body))
}

func TestValidateBody_NetworkCreateMissingSubnet(t *testing.T) {
	body := []byte(`{"name":"net1","netmask":"255.255.255.0"}`)
	assert.Error(t, validateBody(networkCreateSchema, body))
}
