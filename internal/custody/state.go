package custody

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

// Balance is one non-zero ledger entry.
type Balance struct {
	Token  common.Address `json:"token"`
	Holder common.Address `json:"holder"`
	Amount uint64         `json:"amount,string"`
}

// Grant maps an account or token to the authority that controls it.
type Grant struct {
	Subject   common.Address `json:"subject"`
	Authority common.Address `json:"authority"`
}

// State is a serializable copy of a Ledger.
type State struct {
	Balances        []Balance `json:"balances"`
	Owners          []Grant   `json:"owners"`
	MintAuthorities []Grant   `json:"mint_authorities"`
}

// Export returns the ledger contents in a stable order.
func (l *Ledger) Export() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	var state State
	for token, holders := range l.balances {
		for holder, amount := range holders {
			if amount == 0 {
				continue
			}
			state.Balances = append(state.Balances, Balance{Token: token, Holder: holder, Amount: amount})
		}
	}
	sort.Slice(state.Balances, func(i, j int) bool {
		if c := bytes.Compare(state.Balances[i].Token.Bytes(), state.Balances[j].Token.Bytes()); c != 0 {
			return c < 0
		}
		return bytes.Compare(state.Balances[i].Holder.Bytes(), state.Balances[j].Holder.Bytes()) < 0
	})
	state.Owners = sortedGrants(l.owners)
	state.MintAuthorities = sortedGrants(l.minters)
	return state
}

// Restore builds a Ledger from an exported State.
func Restore(state State) (*Ledger, error) {
	l := NewLedger()
	for _, g := range state.Owners {
		l.owners[g.Subject] = g.Authority
	}
	for _, g := range state.MintAuthorities {
		l.minters[g.Subject] = g.Authority
	}
	for _, b := range state.Balances {
		if err := l.credit(b.Token, b.Holder, b.Amount); err != nil {
			return nil, fmt.Errorf("restore balance %s/%s: %w", b.Token.Hex(), b.Holder.Hex(), err)
		}
	}
	return l, nil
}

func sortedGrants(m map[common.Address]common.Address) []Grant {
	out := make([]Grant, 0, len(m))
	for subject, authority := range m {
		out = append(out, Grant{Subject: subject, Authority: authority})
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Subject.Bytes(), out[j].Subject.Bytes()) < 0
	})
	return out
}
