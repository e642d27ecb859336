package state

import (
	"encoding/binary"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var (
	accountPrefix    = []byte("account:")
	agreementPrefix  = []byte("agreement:")
	agreementSeqKey  = ethcrypto.Keccak256([]byte("agreement-seq"))
	missedPrefix     = []byte("agreement-missed:")
	ledgerPrefix     = []byte("ledger:")
	assetPrefix      = []byte("asset:")
	assetSeqKey      = ethcrypto.Keccak256([]byte("asset-seq"))
	proposalPrefix   = []byte("gov-proposal:")
	proposalSeqKey   = ethcrypto.Keccak256([]byte("gov-proposal-seq"))
	votePrefix       = []byte("gov-vote:")
	paramStorePrefix = []byte("params:")
	pauseRegistryKey = ethcrypto.Keccak256([]byte("pause-registry"))
)

func accountKey(addr [20]byte) []byte {
	buf := make([]byte, len(accountPrefix)+len(addr))
	copy(buf, accountPrefix)
	copy(buf[len(accountPrefix):], addr[:])
	return ethcrypto.Keccak256(buf)
}

func agreementKey(id uint64) []byte {
	return idKey(agreementPrefix, id)
}

func missedKey(agreementID, dueDate uint64) []byte {
	buf := make([]byte, len(missedPrefix)+16)
	copy(buf, missedPrefix)
	binary.BigEndian.PutUint64(buf[len(missedPrefix):], agreementID)
	binary.BigEndian.PutUint64(buf[len(missedPrefix)+8:], dueDate)
	return ethcrypto.Keccak256(buf)
}

func ledgerKey(agreementID uint64) []byte {
	return idKey(ledgerPrefix, agreementID)
}

func assetKey(id uint64) []byte {
	return idKey(assetPrefix, id)
}

func proposalKey(id uint64) []byte {
	return idKey(proposalPrefix, id)
}

func voteKey(proposalID uint64, voter [20]byte) []byte {
	buf := make([]byte, len(votePrefix)+8+len(voter))
	copy(buf, votePrefix)
	binary.BigEndian.PutUint64(buf[len(votePrefix):], proposalID)
	copy(buf[len(votePrefix)+8:], voter[:])
	return ethcrypto.Keccak256(buf)
}

func paramStoreKey(name string) []byte {
	buf := make([]byte, len(paramStorePrefix)+len(name))
	copy(buf, paramStorePrefix)
	copy(buf[len(paramStorePrefix):], name)
	return ethcrypto.Keccak256(buf)
}

func idKey(prefix []byte, id uint64) []byte {
	buf := make([]byte, len(prefix)+8)
	copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[len(prefix):], id)
	return ethcrypto.Keccak256(buf)
}
