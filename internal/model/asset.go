package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// AssetID identifies a token by its contract address.
//
// The underlying value is the 20-byte address, so two spellings of the same
// address with different casing always map to the same key.
type AssetID common.Address

// ParseAssetID validates a hex address and returns its AssetID.
func ParseAssetID(input string) (AssetID, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return AssetID{}, fmt.Errorf("invalid asset address: %q", input)
	}
	return AssetID(common.HexToAddress(input)), nil
}

// MustAssetID is ParseAssetID for constants and tests.
func MustAssetID(input string) AssetID {
	id, err := ParseAssetID(input)
	if err != nil {
		panic(err)
	}
	return id
}

// AssetFromAddress converts a decoded on-chain address.
func AssetFromAddress(addr common.Address) AssetID {
	return AssetID(addr)
}

// Address returns the go-ethereum address.
func (a AssetID) Address() common.Address {
	return common.Address(a)
}

// String returns the lower-case hex form.
func (a AssetID) String() string {
	return strings.ToLower(common.Address(a).Hex())
}

// IsZero reports whether the id is the zero address.
func (a AssetID) IsZero() bool {
	return a == AssetID{}
}

// MarshalText implements encoding.TextMarshaler.
func (a AssetID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *AssetID) UnmarshalText(text []byte) error {
	id, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}
