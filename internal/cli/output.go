package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/amirhossein-jamali/credit-ledger/internal/domain/entity"
)

const (
	outputText = "text"
	outputJSON = "json"
)

func (r *runner) isJSON() bool {
	return r.opts.Output == outputJSON
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTransactions(w io.Writer, txs []*entity.Transaction) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tCREATED\tTYPE\tAMOUNT\tREMAINING\tEXPIRES\tDESCRIPTION")
	for _, tx := range txs {
		remaining := "-"
		if tx.RemainingAmount != nil {
			remaining = fmt.Sprint(*tx.RemainingAmount)
		}
		expires := "-"
		if tx.ExpiresAt != nil {
			expires = tx.ExpiresAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\t%s\n",
			tx.ID, tx.CreatedAt.Format(time.RFC3339), tx.Type, tx.Amount, remaining, expires, tx.Description)
	}
	return tw.Flush()
}
