package params

const (
	MaxTransactionSize   = 1232  // Serialized size limit of one submitted transaction.
	DefaultChunkSize     = 850   // Context data bytes written by one populate instruction.
	MaxPendingCredits    = 65536 // Default bound on pending credits before apply is required.
	RecentOrderingTokens = 150   // Ordering tokens still accepted by the ledger.

	CollateralPerByte      uint64 = 6960 // Lamports locked per byte of context account data.
	ContextAccountBase     uint64 = 128  // Storage overhead charged on top of the context data.
	DefaultAirdropLamports uint64 = 1_000_000_000

	PendingLoBits = 16 // Bit width of the low pending component.
	PendingHiBits = 32 // Bit width of the high pending component.
	MaxAmountBits = PendingLoBits + PendingHiBits
	MaxAmount     = uint64(1)<<MaxAmountBits - 1 // Largest deposit or transfer amount.
	BalanceBits   = 64                           // Bit width proven for a remaining available balance.
	DecryptBound  = uint64(1) << 32              // Plaintexts above this are not recoverable by discrete log.
)
