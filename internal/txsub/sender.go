// Package txsub signs and submits planned transactions and tracks them
// to confirmation.
package txsub

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"github.com/artvault/marketplace/backend/internal/redeem"
)

// Wallet is the only signing capability the sender needs: an identity
// and a way to produce the private key for that identity. Ephemeral
// per-transaction keys travel inside the plan instead.
type Wallet interface {
	PublicKey() solana.PublicKey
	Signer(key solana.PublicKey) *solana.PrivateKey
}

// Keypair is a Wallet backed by a single private key.
type Keypair struct {
	Key solana.PrivateKey
}

func (k Keypair) PublicKey() solana.PublicKey {
	return k.Key.PublicKey()
}

func (k Keypair) Signer(key solana.PublicKey) *solana.PrivateKey {
	if k.Key.PublicKey().Equals(key) {
		return &k.Key
	}
	return nil
}

// SequencePolicy controls how a batch reacts to a member failing.
type SequencePolicy uint8

const (
	// StopOnFailure abandons the remaining members once one fails.
	StopOnFailure SequencePolicy = iota
	// Parallel submits all members concurrently; failures do not
	// abort siblings.
	Parallel
)

// Result records the outcome of one submitted plan.
type Result struct {
	Label     string
	Signature solana.Signature
	Err       error
}

type Config struct {
	Commitment    rpc.CommitmentType
	SkipPreflight bool
	MaxRetries    *uint
	TxTimeout     time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// Sender submits plans against one RPC endpoint on behalf of one
// wallet, confirming each signature before reporting success.
type Sender struct {
	rpc    *rpc.Client
	wallet Wallet
	cfg    Config
	logger *slog.Logger
}

func New(client *rpc.Client, wallet Wallet, cfg Config, logger *slog.Logger) *Sender {
	return &Sender{rpc: client, wallet: wallet, cfg: cfg, logger: logger}
}

// Send signs the plan with the wallet plus the plan's ephemeral keys,
// submits it and waits for confirmation.
func (s *Sender) Send(ctx context.Context, plan redeem.TxPlan) (solana.Signature, error) {
	if s.cfg.TxTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TxTimeout)
		defer cancel()
	}

	recent, err := s.rpc.GetLatestBlockhash(ctx, s.cfg.Commitment)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(
		plan.Instructions,
		recent.Value.Blockhash,
		solana.TransactionPayer(s.wallet.PublicKey()),
	)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		if signer := s.wallet.Signer(key); signer != nil {
			return signer
		}
		for i := range plan.Signers {
			if plan.Signers[i].PublicKey().Equals(key) {
				return &plan.Signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	opts := rpc.TransactionOpts{
		SkipPreflight:       s.cfg.SkipPreflight,
		PreflightCommitment: s.cfg.Commitment,
	}
	if s.cfg.MaxRetries != nil {
		retries := *s.cfg.MaxRetries
		opts.MaxRetries = &retries
	}

	sig, err := s.rpc.SendTransactionWithOpts(ctx, tx, opts)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	if err := s.waitForConfirmation(ctx, sig); err != nil {
		return sig, fmt.Errorf("confirm %s: %w", sig, err)
	}
	return sig, nil
}

// SendWithRetry resubmits the plan until it confirms or the configured
// attempt budget runs out. Ephemeral keys are reused across attempts,
// so a transaction that actually landed makes the retry fail fast on
// the duplicate account creation instead of double-spending.
func (s *Sender) SendWithRetry(ctx context.Context, plan redeem.TxPlan) (solana.Signature, error) {
	attempts := s.cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		sig, err := s.Send(ctx, plan)
		if err == nil {
			return sig, nil
		}
		lastErr = err
		s.logger.Warn("transaction attempt failed",
			"label", plan.Label,
			"attempt", attempt,
			"err", err,
		)
		if attempt < attempts {
			select {
			case <-ctx.Done():
				return solana.Signature{}, ctx.Err()
			case <-time.After(s.cfg.RetryDelay):
			}
		}
	}
	return solana.Signature{}, lastErr
}

// SendBatch submits the plans under the given policy and returns one
// result per plan, in input order. Under StopOnFailure, plans after
// the first failure carry a nil signature and the aborting error.
func (s *Sender) SendBatch(ctx context.Context, plans []redeem.TxPlan, policy SequencePolicy) []Result {
	results := make([]Result, len(plans))

	if policy == Parallel {
		var wg sync.WaitGroup
		for i := range plans {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sig, err := s.Send(ctx, plans[i])
				results[i] = Result{Label: plans[i].Label, Signature: sig, Err: err}
			}(i)
		}
		wg.Wait()
		return results
	}

	for i := range plans {
		sig, err := s.Send(ctx, plans[i])
		results[i] = Result{Label: plans[i].Label, Signature: sig, Err: err}
		if err != nil {
			for j := i + 1; j < len(plans); j++ {
				results[j] = Result{Label: plans[j].Label, Err: fmt.Errorf("not attempted: %w", err)}
			}
			break
		}
	}
	return results
}

func (s *Sender) waitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(700 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			result, err := s.rpc.GetSignatureStatuses(ctx, true, sig)
			if err != nil {
				continue
			}
			if len(result.Value) == 0 || result.Value[0] == nil {
				continue
			}
			status := result.Value[0]
			if status.Err != nil {
				return fmt.Errorf("transaction failed: %v", status.Err)
			}
			if status.ConfirmationStatus == rpc.ConfirmationStatusConfirmed ||
				status.ConfirmationStatus == rpc.ConfirmationStatusFinalized {
				return nil
			}
		}
	}
}
