package amm

import "github.com/ethereum/go-ethereum/common"

// InstructionKind is the custody action an Instruction asks for.
type InstructionKind uint8

const (
	KindTransfer InstructionKind = iota + 1
	KindMint
	KindBurn
)

func (k InstructionKind) String() string {
	switch k {
	case KindTransfer:
		return "transfer"
	case KindMint:
		return "mint"
	case KindBurn:
		return "burn"
	default:
		return "unknown"
	}
}

// Instruction is one custody action produced by a pool operation. The
// operations of a single result must be applied together or not at all.
//
// Mint leaves From empty, Burn leaves To empty.
type Instruction struct {
	Kind      InstructionKind `json:"kind"`
	Token     common.Address  `json:"token"`
	From      common.Address  `json:"from"`
	To        common.Address  `json:"to"`
	Authority common.Address  `json:"authority"`
	Amount    uint64          `json:"amount,string"`
}

func transfer(token, from, to, authority common.Address, amount uint64) Instruction {
	return Instruction{Kind: KindTransfer, Token: token, From: from, To: to, Authority: authority, Amount: amount}
}

func mintTo(token, to, authority common.Address, amount uint64) Instruction {
	return Instruction{Kind: KindMint, Token: token, To: to, Authority: authority, Amount: amount}
}

func burn(token, from, authority common.Address, amount uint64) Instruction {
	return Instruction{Kind: KindBurn, Token: token, From: from, Authority: authority, Amount: amount}
}
