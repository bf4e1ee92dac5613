package flags

import "github.com/urfave/cli/v2"

const (
	LedgerCategory     = "LEDGER"
	AccountCategory    = "ACCOUNT"
	ClientCategory     = "CLIENT"
	DevCategory        = "DEVELOPER LEDGER"
	TrackerCategory    = "BALANCE TRACKER"
	LoggingCategory    = "LOGGING AND DEBUGGING"
	MiscCategory       = "MISC"
	DeprecatedCategory = "ALIASED (deprecated)"
)

func init() {
	cli.HelpFlag.(*cli.BoolFlag).Category = MiscCategory
	cli.VersionFlag.(*cli.BoolFlag).Category = MiscCategory
}
