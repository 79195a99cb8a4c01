// Package display renders session progress to the terminal. It implements
// the miner.SessionReporter port and is purely observational.
package display

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/params"
	"github.com/fatih/color"

	"github.com/xueshanjianke/fct-miner/pkg/miner"
)

var (
	phaseColor = map[miner.TxPhase]*color.Color{
		miner.PhasePreparing:  color.New(color.FgCyan),
		miner.PhaseSubmitting: color.New(color.FgYellow),
		miner.PhaseConfirming: color.New(color.FgYellow),
		miner.PhaseCompleted:  color.New(color.FgGreen),
		miner.PhaseFailed:     color.New(color.FgRed),
	}

	labelColor = color.New(color.FgWhite, color.Bold)
)

// Terminal writes session updates to stdout with colored phases and
// ETH/USD valuations.
type Terminal struct {
	// PriceUSD values spend in USD when positive
	PriceUSD float64
}

// SessionUpdate implements miner.SessionReporter.
func (t *Terminal) SessionUpdate(u miner.SessionUpdate) {
	c, ok := phaseColor[u.Phase]
	if !ok {
		c = color.New(color.FgWhite)
	}

	switch u.Phase {
	case miner.PhasePreparing:
		// Quiet phase; the estimate is not chosen yet.
		return
	case miner.PhaseSubmitting:
		fmt.Printf("%s tx #%d  nonce=%d  size=%dKB  est=%s\n",
			c.Sprint("→ submitting"), u.Totals.TransactionsSubmitted+1, u.Nonce,
			u.Estimate.SizeBytes/1024, formatETH(u.Estimate.EstimatedCost))
	case miner.PhaseConfirming:
		fmt.Printf("%s %s\n", c.Sprint("⧗ confirming"), u.TxHash.Hex())
	case miner.PhaseCompleted:
		fmt.Printf("%s %s  spent=%s%s  minted=%s FCT\n",
			c.Sprint("✓ confirmed"), u.TxHash.Hex(),
			formatETH(u.Totals.TotalSpent), t.usd(u.Totals.TotalSpent),
			formatFCT(u.Totals.TotalMinted))
	case miner.PhaseFailed:
		fmt.Printf("%s nonce=%d: %v\n", c.Sprint("✗ failed"), u.Nonce, u.Err)
	}
}

// PrintSummary renders the final session totals.
func (t *Terminal) PrintSummary(totals miner.SessionTotals) {
	labelColor.Println("Session summary")
	fmt.Printf("  transactions: %d confirmed, %d failed\n",
		totals.TransactionsSubmitted-totals.TransactionsFailed, totals.TransactionsFailed)
	fmt.Printf("  spent:  %s%s\n", formatETH(totals.TotalSpent), t.usd(totals.TotalSpent))
	fmt.Printf("  minted: %s FCT\n", formatFCT(totals.TotalMinted))
}

func (t *Terminal) usd(wei *big.Int) string {
	if t.PriceUSD <= 0 || wei == nil {
		return ""
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether)).Float64()
	return fmt.Sprintf(" ($%.2f)", eth*t.PriceUSD)
}

func formatETH(wei *big.Int) string {
	if wei == nil {
		return "0 ETH"
	}
	eth := new(big.Float).Quo(new(big.Float).SetInt(wei), big.NewFloat(params.Ether))
	return fmt.Sprintf("%.6f ETH", eth)
}

func formatFCT(fctWei *big.Int) string {
	if fctWei == nil {
		return "0"
	}
	fct := new(big.Float).Quo(new(big.Float).SetInt(fctWei), big.NewFloat(params.Ether))
	return fmt.Sprintf("%.4f", fct)
}
