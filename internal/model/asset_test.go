package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAssetIDFoldsCase(t *testing.T) {
	lower, err := ParseAssetID("0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48")
	require.NoError(t, err)
	mixed, err := ParseAssetID(" 0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48 ")
	require.NoError(t, err)

	assert.Equal(t, lower, mixed)
	assert.Equal(t, "0xa0b86991c6218b36c1d19d4a2e9eb0ce3606eb48", mixed.String())

	set := map[AssetID]int{lower: 1}
	set[mixed]++
	assert.Len(t, set, 1)
	assert.Equal(t, 2, set[lower])
}

func TestParseAssetIDRejectsGarbage(t *testing.T) {
	_, err := ParseAssetID("usdc")
	require.Error(t, err)
	_, err = ParseAssetID("0x1234")
	require.Error(t, err)
}

func TestAssetIDJSONKey(t *testing.T) {
	id := MustAssetID("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
	data, err := json.Marshal(map[AssetID]float64{id: 1})
	require.NoError(t, err)
	assert.JSONEq(t, `{"0x2260fac5e5542a773aa44fbcfedf7c193bc2c599":1}`, string(data))

	var decoded map[AssetID]float64
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 1.0, decoded[id])
}
