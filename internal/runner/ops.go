package runner

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"minidex/internal/model"
)

// ErrInvalidOperation marks a script line that cannot be executed as given.
var ErrInvalidOperation = errors.New("invalid operation")

// ReadOperations loads a JSONL script. A zero seq is replaced by the previous
// seq plus one; explicit seqs must not decrease.
func ReadOperations(path string) ([]model.Operation, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 10*1024*1024)

	var ops []model.Operation
	var lineNo, prev uint64
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 || line[0] == '#' {
			continue
		}

		var op model.Operation
		if err := json.Unmarshal(line, &op); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if op.Seq == 0 {
			op.Seq = prev + 1
		}
		if op.Seq < prev {
			return nil, fmt.Errorf("line %d: seq %d after %d", lineNo, op.Seq, prev)
		}
		prev = op.Seq
		ops = append(ops, op)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan input: %w", err)
	}
	return ops, nil
}

// ParseAddress converts a hex string into common.Address.
func ParseAddress(field, input string) (common.Address, error) {
	input = strings.TrimSpace(input)
	if !common.IsHexAddress(input) {
		return common.Address{}, fmt.Errorf("%w: %s %q is not an address", ErrInvalidOperation, field, input)
	}
	return common.HexToAddress(input), nil
}
