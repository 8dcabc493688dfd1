package codec

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// Token-vault program discriminants, kept in the first byte of every
// account the program owns.
const (
	VaultKeyUninitialized    uint8 = 0
	VaultKeySafetyDepositBox uint8 = 1
	VaultKeyExternalPrice    uint8 = 2
	VaultKeyVault            uint8 = 3
)

type VaultState uint8

const (
	VaultInactive    VaultState = 0
	VaultActive      VaultState = 1
	VaultCombined    VaultState = 2
	VaultDeactivated VaultState = 3
)

// Vault is the token-vault program's container record. One vault holds
// the safety deposit boxes backing a single auction.
type Vault struct {
	Key                       uint8
	TokenProgram              solana.PublicKey
	FractionMint              solana.PublicKey
	Authority                 solana.PublicKey
	FractionTreasury          solana.PublicKey
	RedeemTreasury            solana.PublicKey
	AllowFurtherShareCreation bool
	PricingLookupAddress      solana.PublicKey
	TokenTypeCount            uint8
	State                     VaultState
	LockedPricePerShare       uint64
}

// SafetyDepositBox holds one token type inside a vault. Order is the
// box's dense index within its vault, assigned at creation.
type SafetyDepositBox struct {
	Key       uint8
	Vault     solana.PublicKey
	TokenMint solana.PublicKey
	Store     solana.PublicKey
	Order     uint8
}

func DecodeVault(data []byte) (*Vault, error) {
	if len(data) == 0 || data[0] != VaultKeyVault {
		return nil, mismatch("vault", fmt.Errorf("bad discriminant"))
	}
	var v Vault
	if err := decodeBorsh("vault", data, &v); err != nil {
		return nil, err
	}
	if v.State > VaultDeactivated {
		return nil, mismatch("vault", fmt.Errorf("state %d out of range", v.State))
	}
	return &v, nil
}

func DecodeSafetyDepositBox(data []byte) (*SafetyDepositBox, error) {
	if len(data) == 0 || data[0] != VaultKeySafetyDepositBox {
		return nil, mismatch("safety deposit box", fmt.Errorf("bad discriminant"))
	}
	var b SafetyDepositBox
	if err := decodeBorsh("safety deposit box", data, &b); err != nil {
		return nil, err
	}
	return &b, nil
}
