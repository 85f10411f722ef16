// Package ckb holds the cell-model ledger data types scripts operate on:
// hashes, scripts, cells, transactions and witnesses, together with their
// molecule encodings and the personalized blake2b hash every identity in the
// ledger is derived from.
package ckb
