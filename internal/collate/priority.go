package collate

import (
	"LedgerRouter/internal/ledger"
	"LedgerRouter/internal/oblivious"
)

// ShouldOverwrite decides whether a shard result replaces the client's
// current result for the same key image.
//
// Priority is Spent > KeyImageError > NotSpent:
//   - Spent always wins, including over an earlier Spent.
//   - KeyImageError only replaces the default NotSpent.
//   - NotSpent never replaces anything.
//
// Every term is evaluated; nothing short-circuits.
func ShouldOverwrite(client, shard *ledger.KeyImageResult) oblivious.Choice {
	imagesMatch := oblivious.EqBytes(client.KeyImage[:], shard.KeyImage[:])

	shardCode := uint32(shard.KeyImageResultCode)
	clientCode := uint32(client.KeyImageResultCode)

	shardIsSpent := oblivious.EqUint32(shardCode, uint32(ledger.Spent))
	shardIsError := oblivious.EqUint32(shardCode, uint32(ledger.KeyImageError))
	clientIsNotSpent := oblivious.EqUint32(clientCode, uint32(ledger.NotSpent))

	return imagesMatch.And(shardIsSpent.Or(shardIsError.And(clientIsNotSpent)))
}

// maybeOverwrite copies the mutable fields of shard into client when
// ShouldOverwrite holds. All four selects run either way.
func maybeOverwrite(client, shard *ledger.KeyImageResult) {
	c := ShouldOverwrite(client, shard)

	oblivious.Select(&client.KeyImageResultCode, shard.KeyImageResultCode, c)
	oblivious.Select(&client.SpentAt, shard.SpentAt, c)
	oblivious.Select(&client.Timestamp, shard.Timestamp, c)
	oblivious.Select(&client.TimestampResultCode, shard.TimestampResultCode, c)
}
