package config

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MJE43/rotor-replay-go/internal/slot"
)

// PayoutPrompter asks an operator for each symbol's payout.
type PayoutPrompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func NewPayoutPrompter(in io.Reader, out io.Writer) *PayoutPrompter {
	return &PayoutPrompter{in: bufio.NewScanner(in), out: out}
}

// Prompt reads one payout per paying symbol. An empty answer keeps the value
// from defaults; invalid answers are asked again.
func (p *PayoutPrompter) Prompt(defaults slot.PayoutTable) (slot.PayoutTable, error) {
	table := defaults
	for _, s := range slot.Symbols()[1:] {
		for {
			fmt.Fprintf(p.out, "Payout for %s [%d]: ", s, defaults[s])
			if !p.in.Scan() {
				if err := p.in.Err(); err != nil {
					return slot.PayoutTable{}, err
				}
				return slot.PayoutTable{}, io.ErrUnexpectedEOF
			}
			answer := strings.TrimSpace(p.in.Text())
			if answer == "" {
				break
			}
			v, err := strconv.ParseInt(answer, 10, 64)
			if err != nil || v < 0 {
				fmt.Fprintf(p.out, "invalid payout %q, enter a non-negative integer\n", answer)
				continue
			}
			table[s] = v
			break
		}
	}
	return table, nil
}
