package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/tos-network/ctbal/cmd/utils"
	"github.com/tos-network/ctbal/core/ctclient"
	"github.com/tos-network/ctbal/core/types"
)

func mustPrintJSON(jsonObject interface{}) {
	str, err := json.MarshalIndent(jsonObject, "", "  ")
	if err != nil {
		utils.Fatalf("Failed to marshal JSON object: %v", err)
	}
	fmt.Println(string(str))
}

func printReceipts(receipts []types.Receipt) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"#", "Tx", "Slot", "Size", "Instructions"})
	for i, r := range receipts {
		table.Append([]string{
			strconv.Itoa(i + 1),
			r.TxHash.TerminalString(),
			strconv.FormatUint(r.Slot, 10),
			strconv.Itoa(r.Size),
			strings.Join(r.Instructions, ", "),
		})
	}
	table.Render()
}

func flag(v bool) string {
	if v {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}

func printBalances(b *ctclient.Balances) {
	fmt.Printf("Account %s\n", b.Account.Hex())
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Balance", "Amount"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk([][]string{
		{"public", strconv.FormatUint(b.Public, 10)},
		{"pending (lo)", strconv.FormatUint(b.PendingLo, 10)},
		{"pending (hi)", strconv.FormatUint(b.PendingHi, 10)},
		{"pending", strconv.FormatUint(b.Pending, 10)},
		{"available", strconv.FormatUint(b.Available, 10)},
		{"total", strconv.FormatUint(b.Total, 10)},
	})
	table.Render()

	fmt.Printf("Configured: %s  Approved: %s  Confidential credits: %s  Public credits: %s\n",
		flag(b.Configured), flag(b.Approved), flag(b.AllowConfidentialCredits), flag(b.AllowNonConfidentialCredits))
	fmt.Printf("Pending credits: %d of %d\n", b.PendingCredits, b.MaxPendingCredits)
}
