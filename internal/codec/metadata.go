package codec

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Token-metadata program discriminants.
const (
	MetadataKeyMetadata      uint8 = 0
	MetadataKeyEdition       uint8 = 1
	MetadataKeyMasterEdition uint8 = 2
)

type Creator struct {
	Address  solana.PublicKey
	Verified bool
	Share    uint8
}

// MetadataData is the descriptive payload of an item: display fields
// plus the royalty split.
type MetadataData struct {
	Name     string
	Symbol   string
	URI      string
	Creators *[]Creator `bin:"optional"`
}

// Metadata describes the token behind a mint.
type Metadata struct {
	Key             uint8
	UpdateAuthority solana.PublicKey
	Mint            solana.PublicKey
	Data            MetadataData
}

// HasContentURI reports whether the item points at retrievable content.
// Items without one are not worth indexing by mint.
func (m *Metadata) HasContentURI() bool {
	uri := strings.TrimRight(m.Data.URI, "\x00")
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// MasterEdition is the printing authority record for an item. New
// prints are authorized through its master mint.
type MasterEdition struct {
	Key        uint8
	Supply     uint64
	MaxSupply  *uint64 `bin:"optional"`
	MasterMint solana.PublicKey
}

// Edition is one print made from a master edition.
type Edition struct {
	Key     uint8
	Parent  solana.PublicKey
	Edition uint64
}

func DecodeMetadata(data []byte) (*Metadata, error) {
	if len(data) == 0 || data[0] != MetadataKeyMetadata {
		return nil, mismatch("metadata", fmt.Errorf("bad discriminant"))
	}
	var m Metadata
	if err := decodeBorsh("metadata", data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func DecodeMasterEdition(data []byte) (*MasterEdition, error) {
	if len(data) == 0 || data[0] != MetadataKeyMasterEdition {
		return nil, mismatch("master edition", fmt.Errorf("bad discriminant"))
	}
	var e MasterEdition
	if err := decodeBorsh("master edition", data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

func DecodeEdition(data []byte) (*Edition, error) {
	if len(data) == 0 || data[0] != MetadataKeyEdition {
		return nil, mismatch("edition", fmt.Errorf("bad discriminant"))
	}
	var e Edition
	if err := decodeBorsh("edition", data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// Token-metadata program instruction discriminants used by this engine.
const (
	metadataIxMintNewEditionFromMasterEditionViaToken uint8 = 3
)

// EncodeMintNewEditionViaTokenArgs builds the payload for printing a
// new edition through an authorization token.
func EncodeMintNewEditionViaTokenArgs() []byte {
	return []byte{metadataIxMintNewEditionFromMasterEditionViaToken}
}
