package venue

import (
	"crypto/ed25519"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"perpmm/internal/config"
)

// Wallet holds the signing keypair this session trades under. Every venue
// request is signed with this key, the same role the teacher's Auth plays
// for EIP-712 — but this venue settles on Solana, so the key is an ed25519
// keypair loaded from base58 rather than an ECDSA key loaded from hex.
type Wallet struct {
	privateKey solana.PrivateKey
	publicKey  solana.PublicKey
}

// NewWallet decodes PRIVATE_KEY_BASE58 into a Solana keypair.
func NewWallet(cfg config.WalletConfig) (*Wallet, error) {
	if cfg.PrivateKeyBase58 == "" {
		return nil, fmt.Errorf("wallet: private_key_base58 is empty")
	}
	if _, err := base58.Decode(cfg.PrivateKeyBase58); err != nil {
		return nil, fmt.Errorf("wallet: decode base58 key: %w", err)
	}

	key, err := solana.PrivateKeyFromBase58(cfg.PrivateKeyBase58)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse private key: %w", err)
	}

	return &Wallet{
		privateKey: key,
		publicKey:  key.PublicKey(),
	}, nil
}

// Address returns the base58-encoded public key, the account identity the
// venue's UpdateAccountID call derives from.
func (w *Wallet) Address() string {
	return w.publicKey.String()
}

// Sign produces an ed25519 signature over an arbitrary request payload
// (the venue's own wire format for what gets signed is out of scope — spec
// §1 treats the venue SDK as a thin external collaborator, not a protocol
// this repo implements).
func (w *Wallet) Sign(payload []byte) ([]byte, error) {
	sig, err := w.privateKey.Sign(payload)
	if err != nil {
		return nil, fmt.Errorf("wallet: sign: %w", err)
	}
	return sig[:], nil
}

// Verify checks a signature against this wallet's public key. Used in
// tests.
func (w *Wallet) Verify(payload, sig []byte) bool {
	return ed25519.Verify(ed25519.PublicKey(w.publicKey[:]), payload, sig)
}
