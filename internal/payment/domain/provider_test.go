package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEveryProviderHasType(t *testing.T) {
	for _, p := range AllProviders() {
		assert.True(t, p.Type().Valid(), "provider %s", p)
	}
	assert.Equal(t, IntegrationTypeGateway, ProviderPaystack.Type())
	assert.Equal(t, IntegrationTypeMobileMoney, ProviderMpesa.Type())
	assert.Equal(t, IntegrationType(""), Provider("stripe").Type())
}

func TestParseProvider(t *testing.T) {
	p, err := ParseProvider("  PayStack ")
	require.NoError(t, err)
	assert.Equal(t, ProviderPaystack, p)

	_, err = ParseProvider("")
	assert.ErrorIs(t, err, ErrInvalidProvider)

	_, err = ParseProvider("unknown_xyz")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestStringListRoundTrip(t *testing.T) {
	raw := StringList([]string{"KES", "NGN"})
	assert.JSONEq(t, `["KES","NGN"]`, string(raw))
	assert.Equal(t, []string{"KES", "NGN"}, DecodeStringList(raw))
	assert.JSONEq(t, `[]`, string(StringList(nil)))
	assert.Empty(t, DecodeStringList(nil))
}
