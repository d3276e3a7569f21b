// Package custody keeps token balances for simulated pools and users and
// executes the custody instructions produced by pool operations.
package custody

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/multierr"

	"minidex/internal/amm"
	"minidex/internal/safemath"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrOverflow            = errors.New("balance overflow")
	ErrUnknownInstruction  = errors.New("unknown instruction")
)

// Ledger is an in-memory multi-token balance sheet.
//
// An account may be controlled by an owner other than itself (pool vaults
// are owned by the pool), and a token may have a mint authority (LP tokens
// are minted by their pool). Tokens without a mint authority can only enter
// the ledger through Credit.
type Ledger struct {
	mu       sync.Mutex
	balances map[common.Address]map[common.Address]uint64
	supply   map[common.Address]uint64
	owners   map[common.Address]common.Address
	minters  map[common.Address]common.Address
}

func NewLedger() *Ledger {
	return &Ledger{
		balances: make(map[common.Address]map[common.Address]uint64),
		supply:   make(map[common.Address]uint64),
		owners:   make(map[common.Address]common.Address),
		minters:  make(map[common.Address]common.Address),
	}
}

// SetOwner makes owner the only authority allowed to move funds out of
// account.
func (l *Ledger) SetOwner(account, owner common.Address) {
	l.mu.Lock()
	l.owners[account] = owner
	l.mu.Unlock()
}

// SetMintAuthority registers the only authority allowed to mint token.
func (l *Ledger) SetMintAuthority(token, authority common.Address) {
	l.mu.Lock()
	l.minters[token] = authority
	l.mu.Unlock()
}

// BalanceOf returns holder's balance of token.
func (l *Ledger) BalanceOf(token, holder common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[token][holder]
}

// Supply returns the sum of all balances of token.
func (l *Ledger) Supply(token common.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.supply[token]
}

// Credit adds funds of an external token to holder.
func (l *Ledger) Credit(token, holder common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.minters[token]; ok {
		return fmt.Errorf("%w: token %s has a mint authority", ErrUnauthorized, token.Hex())
	}
	return l.credit(token, holder, amount)
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(token, from, to, authority common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transfer(token, from, to, authority, amount)
}

// Mint creates amount of token for to.
func (l *Ledger) Mint(token, to, authority common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.mint(token, to, authority, amount)
}

// Burn destroys amount of token held by from.
func (l *Ledger) Burn(token, from, authority common.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.burn(token, from, authority, amount)
}

// Apply executes the instructions in order. If any of them fails, the ones
// already executed are reverted and the ledger is left unchanged.
func (l *Ledger) Apply(instructions []amm.Instruction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, ins := range instructions {
		if err := l.apply(ins); err != nil {
			err = fmt.Errorf("instruction %d (%s %s): %w", i, ins.Kind, ins.Token.Hex(), err)
			for j := i - 1; j >= 0; j-- {
				err = multierr.Append(err, l.revert(instructions[j]))
			}
			return err
		}
	}
	return nil
}

func (l *Ledger) apply(ins amm.Instruction) error {
	switch ins.Kind {
	case amm.KindTransfer:
		return l.transfer(ins.Token, ins.From, ins.To, ins.Authority, ins.Amount)
	case amm.KindMint:
		return l.mint(ins.Token, ins.To, ins.Authority, ins.Amount)
	case amm.KindBurn:
		return l.burn(ins.Token, ins.From, ins.Authority, ins.Amount)
	default:
		return fmt.Errorf("%w: %d", ErrUnknownInstruction, ins.Kind)
	}
}

// revert undoes an instruction that was applied successfully, skipping
// authority checks.
func (l *Ledger) revert(ins amm.Instruction) error {
	switch ins.Kind {
	case amm.KindTransfer:
		return l.move(ins.Token, ins.To, ins.From, ins.Amount)
	case amm.KindMint:
		return l.debit(ins.Token, ins.To, ins.Amount)
	case amm.KindBurn:
		return l.credit(ins.Token, ins.From, ins.Amount)
	default:
		return nil
	}
}

func (l *Ledger) transfer(token, from, to, authority common.Address, amount uint64) error {
	if l.ownerOf(from) != authority {
		return fmt.Errorf("%w: %s cannot move funds of %s", ErrUnauthorized, authority.Hex(), from.Hex())
	}
	return l.move(token, from, to, amount)
}

func (l *Ledger) mint(token, to, authority common.Address, amount uint64) error {
	minter, ok := l.minters[token]
	if !ok || minter != authority {
		return fmt.Errorf("%w: %s cannot mint %s", ErrUnauthorized, authority.Hex(), token.Hex())
	}
	return l.credit(token, to, amount)
}

func (l *Ledger) burn(token, from, authority common.Address, amount uint64) error {
	if l.ownerOf(from) != authority {
		return fmt.Errorf("%w: %s cannot burn from %s", ErrUnauthorized, authority.Hex(), from.Hex())
	}
	return l.debit(token, from, amount)
}

func (l *Ledger) ownerOf(account common.Address) common.Address {
	if owner, ok := l.owners[account]; ok {
		return owner
	}
	return account
}

func (l *Ledger) move(token, from, to common.Address, amount uint64) error {
	if from == to {
		if l.balances[token][from] < amount {
			return fmt.Errorf("%w: %s holds %d < %d", ErrInsufficientBalance, from.Hex(), l.balances[token][from], amount)
		}
		return nil
	}
	if err := l.debit(token, from, amount); err != nil {
		return err
	}
	if err := l.credit(token, to, amount); err != nil {
		// the debit above cannot fail to revert
		_ = l.credit(token, from, amount)
		return err
	}
	return nil
}

func (l *Ledger) credit(token, holder common.Address, amount uint64) error {
	supply, err := safemath.Add64(l.supply[token], amount)
	if err != nil {
		return fmt.Errorf("%w: supply of %s", ErrOverflow, token.Hex())
	}
	holders := l.balances[token]
	if holders == nil {
		holders = make(map[common.Address]uint64)
		l.balances[token] = holders
	}
	balance, err := safemath.Add64(holders[holder], amount)
	if err != nil {
		return fmt.Errorf("%w: balance of %s", ErrOverflow, holder.Hex())
	}
	holders[holder] = balance
	l.supply[token] = supply
	return nil
}

func (l *Ledger) debit(token, holder common.Address, amount uint64) error {
	balance := l.balances[token][holder]
	if balance < amount {
		return fmt.Errorf("%w: %s holds %d < %d", ErrInsufficientBalance, holder.Hex(), balance, amount)
	}
	if amount == 0 {
		return nil
	}
	l.balances[token][holder] = balance - amount
	l.supply[token] -= amount
	return nil
}
