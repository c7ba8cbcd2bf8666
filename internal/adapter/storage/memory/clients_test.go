package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"payment-webhook-engine/internal/core/domain"
)

func TestClientDirectory_EmitterLookup(t *testing.T) {
	dir := NewClientDirectory(
		[]*domain.EmitterClient{
			{Name: "auth-service", AccessKey: "ak_auth", SecretKeyEnc: "enc:auth"},
			{Name: "settlement-service", AccessKey: "ak_settle", SecretKeyEnc: "enc:settle"},
		},
		nil,
	)

	got, err := dir.EmitterByAccessKey(context.Background(), "ak_settle")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "settlement-service", got.Name)
	assert.Equal(t, "enc:settle", got.SecretKeyEnc)

	got, err = dir.EmitterByAccessKey(context.Background(), "ak_unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestClientDirectory_OperatorLookup(t *testing.T) {
	dir := NewClientDirectory(
		nil,
		[]*domain.Operator{
			{KeyID: "op_admin", APIKeyHash: "$argon2id$v=19$m=65536,t=3,p=2$c2FsdA$aGFzaA"},
		},
	)

	got, err := dir.OperatorByKeyID(context.Background(), "op_admin")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "op_admin", got.KeyID)

	got, err = dir.OperatorByKeyID(context.Background(), "op_unknown")
	require.NoError(t, err)
	assert.Nil(t, got)
}
