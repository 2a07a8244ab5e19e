package dex

import "github.com/google/uuid"

// Asset tags which of the market's two assets a token account holds.
type Asset string

const (
	AssetCoin Asset = "coin"
	AssetPc   Asset = "pc"
)

// Account is anything that can appear in an instruction's ordered
// account list. Every account is keyed by a UUID assigned at creation.
type Account interface {
	Key() uuid.UUID
}

// Signer is a participant's identity account.
type Signer struct {
	key uuid.UUID
}

// NewSigner creates a signer with a fresh key.
func NewSigner() *Signer {
	return &Signer{key: uuid.New()}
}

func (s *Signer) Key() uuid.UUID { return s.key }

// TokenAccount holds a native balance of one asset on behalf of an
// owner signer. The market's vaults are token accounts too, owned by
// the market itself.
type TokenAccount struct {
	key     uuid.UUID
	asset   Asset
	owner   uuid.UUID
	balance uint64
}

// NewTokenAccount creates a token account for the given asset and
// owner, pre-funded with balance native units.
func NewTokenAccount(asset Asset, owner uuid.UUID, balance uint64) *TokenAccount {
	return &TokenAccount{key: uuid.New(), asset: asset, owner: owner, balance: balance}
}

func (t *TokenAccount) Key() uuid.UUID { return t.key }

// Asset returns which asset the account holds.
func (t *TokenAccount) Asset() Asset { return t.asset }

// Balance returns the current native balance.
func (t *TokenAccount) Balance() uint64 { return t.balance }

func (t *TokenAccount) credit(amount uint64) {
	t.balance += amount
}

func (t *TokenAccount) debit(amount uint64) bool {
	if t.balance < amount {
		return false
	}
	t.balance -= amount
	return true
}
