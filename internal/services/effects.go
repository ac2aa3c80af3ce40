package services

import (
	"till/internal/models"
)

type rollupBucket int

const (
	bucketCash rollupBucket = iota
	bucketCard
	bucketBank
	bucketWallet
	bucketDrop
	bucketTopUp
)

type txEffect struct {
	bucket rollupBucket
	// movesCash marks types that change the physical drawer contents.
	// Electronic payments hit only their rollup bucket.
	movesCash bool
	// direction is the only direction a type may be recorded with. Payments
	// and top-ups flow in, refunds and drops flow out; a mismatched pair
	// would corrupt the rollups the expected-cash formula is built from.
	direction models.Direction
}

// txEffects is the single source of truth for how a transaction type hits
// the session. Both the record path and the void path go through
// applyEffect, so a void is the exact inverse of the record it reverses.
var txEffects = map[models.TransactionType]txEffect{
	models.TxRentalPayment:       {bucketCash, true, models.DirectionIn},
	models.TxSecurityDeposit:     {bucketCash, true, models.DirectionIn},
	models.TxDepositRefund:       {bucketCash, true, models.DirectionOut},
	models.TxOverpaymentRefund:   {bucketCash, true, models.DirectionOut},
	models.TxCardPayment:         {bucketCard, false, models.DirectionIn},
	models.TxBankTransfer:        {bucketBank, false, models.DirectionIn},
	models.TxMobileWalletPayment: {bucketWallet, false, models.DirectionIn},
	models.TxDrop:                {bucketDrop, true, models.DirectionOut},
	models.TxTopUp:               {bucketTopUp, true, models.DirectionIn},
}

func movesCash(txType models.TransactionType) bool {
	return txEffects[txType].movesCash
}

// applyEffect mutates the session rollups and the balance map for one
// transaction. sign is +1 when recording and -1 when reversing a void.
func applyEffect(session *models.TillSession, balances map[string]int64, entry models.TillTransaction, sign int64) error {
	effect, ok := txEffects[entry.Type]
	if !ok {
		return ErrUnsupportedType
	}
	dir := int64(1)
	if entry.Direction == models.DirectionOut {
		dir = -1
	}
	if effect.movesCash {
		balances[entry.Currency] += sign * dir * entry.Amount
	}
	delta := sign * entry.AmountBase
	switch effect.bucket {
	case bucketCash:
		if entry.Direction == models.DirectionIn {
			session.TotalCashIn += delta
		} else {
			session.TotalCashOut += delta
		}
	case bucketCard:
		session.TotalCard += delta
	case bucketBank:
		session.TotalBankTransfer += delta
	case bucketWallet:
		session.TotalMobileWallet += delta
	case bucketDrop:
		session.TotalDropped += delta
	case bucketTopUp:
		session.TotalToppedUp += delta
	}
	return nil
}
