package redeem

import (
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"
)

// Serialized sizes of the SPL token program's account layouts, used
// both for account creation and for rent lookups.
const (
	MintAccountSize  = 82
	TokenAccountSize = 165
)

// Rent carries the rent-exemption balances for the two account sizes
// the planner allocates. Callers fetch them once per planning pass.
type Rent struct {
	TokenAccount uint64
	Mint         uint64
}

// TxPlan is one independently-submittable transaction: its instruction
// list plus the ephemeral keys that must co-sign it. The wallet's own
// signature is added at submission time.
type TxPlan struct {
	Label        string
	Instructions []solana.Instruction
	Signers      []solana.PrivateKey
}

func (p *TxPlan) add(ix ...solana.Instruction) {
	p.Instructions = append(p.Instructions, ix...)
}

func (p *TxPlan) sign(keys ...solana.PrivateKey) {
	p.Signers = append(p.Signers, keys...)
}

// newTokenAccount appends instructions creating a fresh token account
// for the given mint, owned by owner, and returns its address.
func newTokenAccount(p *TxPlan, payer, owner, mint solana.PublicKey, rent Rent) solana.PublicKey {
	account := solana.NewWallet()
	p.add(
		system.NewCreateAccountInstruction(rent.TokenAccount, TokenAccountSize, solana.TokenProgramID, payer, account.PublicKey()).Build(),
		token.NewInitializeAccountInstruction(account.PublicKey(), mint, owner, solana.SysVarRentPubkey).Build(),
	)
	p.sign(account.PrivateKey)
	return account.PublicKey()
}

// newMint appends instructions creating a fresh zero-decimal mint with
// the owner as both mint and freeze authority.
func newMint(p *TxPlan, payer, owner solana.PublicKey, rent Rent) solana.PublicKey {
	mint := solana.NewWallet()
	p.add(
		system.NewCreateAccountInstruction(rent.Mint, MintAccountSize, solana.TokenProgramID, payer, mint.PublicKey()).Build(),
		token.NewInitializeMintInstruction(0, mint.PublicKey(), owner, owner, solana.SysVarRentPubkey).Build(),
	)
	p.sign(mint.PrivateKey)
	return mint.PublicKey()
}

// approveDelegate appends an approval of amount to a fresh ephemeral
// delegate and returns the delegate key, which must co-sign the
// consuming instruction.
func approveDelegate(p *TxPlan, source, owner solana.PublicKey, amount uint64) solana.PublicKey {
	delegate := solana.NewWallet()
	p.add(token.NewApproveInstruction(amount, source, delegate.PublicKey(), owner, nil).Build())
	p.sign(delegate.PrivateKey)
	return delegate.PublicKey()
}

// PaymentDestination prepares the account incoming funds land in:
// the owner's existing token account, or for the native mint a
// throwaway wrapped account plus the cleanup instruction that unwraps
// it back to the owner.
func PaymentDestination(p *TxPlan, owner, mint, existing solana.PublicKey, rent Rent) (solana.PublicKey, []solana.Instruction, bool) {
	return paymentAccount(p, owner, mint, 0, existing, rent)
}

// paymentAccount prepares the account the payment is pulled from. For
// the wrapped native mint a throwaway wrapped account is funded with
// exactly the price plus its own rent and closed again at the end of
// the transaction; for other mints the bidder's existing token account
// is used directly.
func paymentAccount(p *TxPlan, payer, mint solana.PublicKey, price uint64, existing solana.PublicKey, rent Rent) (solana.PublicKey, []solana.Instruction, bool) {
	if !mint.Equals(solana.WrappedSol) {
		return existing, nil, !existing.IsZero()
	}
	account := solana.NewWallet()
	p.add(
		system.NewCreateAccountInstruction(price+rent.TokenAccount, TokenAccountSize, solana.TokenProgramID, payer, account.PublicKey()).Build(),
		token.NewInitializeAccountInstruction(account.PublicKey(), solana.WrappedSol, payer, solana.SysVarRentPubkey).Build(),
	)
	p.sign(account.PrivateKey)
	cleanup := []solana.Instruction{
		token.NewCloseAccountInstruction(account.PublicKey(), payer, payer, nil).Build(),
	}
	return account.PublicKey(), cleanup, true
}
