package model

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestOperationAmountsAreStrings(t *testing.T) {
	line := `{"seq":7,"op":"swap","actor":"0x01","token_a":"0xaa","token_b":"0xbb","amount":"18446744073709551615","min_amount_out":"90","direction":"a_to_b"}`

	var op Operation
	if err := json.Unmarshal([]byte(line), &op); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if op.Amount != 18446744073709551615 {
		t.Fatalf("amount mismatch: %d", op.Amount)
	}
	if op.MinAmountOut != 90 || op.Op != OpSwap || op.Direction != "a_to_b" {
		t.Fatalf("unexpected operation: %+v", op)
	}

	if err := json.Unmarshal([]byte(`{"seq":1,"op":"swap","amount":100}`), &op); err == nil {
		t.Fatalf("expected error for unquoted amount")
	}
}

func TestEventRecordOmitsUnusedAmounts(t *testing.T) {
	rec := EventRecord{
		Seq:           3,
		Kind:          EventSwap,
		Pool:          "0xpool",
		AmountIn:      100,
		AmountOut:     90,
		Fee:           1,
		ReserveA:      1100,
		ReserveB:      910,
		TotalLPSupply: 1000,
	}

	b, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	out := string(b)

	for _, want := range []string{`"amount_in":"100"`, `"amount_out":"90"`, `"reserve_b":"910"`, `"kind":"swap"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %s in %s", want, out)
		}
	}
	if strings.Contains(out, "amount_a") || strings.Contains(out, "lp_tokens") {
		t.Fatalf("unexpected liquidity fields in %s", out)
	}
}
