package state

import (
	"encoding/binary"
	"encoding/hex"
)

const (
	tokenMetaPrefix     = "token/meta/"
	tokenBalancePrefix  = "token/bal/"
	tokenAllowPrefix    = "token/allow/"
	tokenHoldersPrefix  = "token/holders/"
	campaignPrefix      = "campaign/"
	investmentPrefix    = "campaign/inv/"
	campaignIssuerIdx   = "campaign/index/issuer/"
	campaignAssetIdx    = "campaign/index/asset/"
	payoutSeqKey        = "payout/seq"
	payoutPrefix        = "payout/"
	payoutClaimedPrefix = "payout/claimed/"
	payoutAssetIdx      = "payout/index/asset/"
	payoutOwnerIdx      = "payout/index/owner/"
	liquidationPrefix   = "liq/"
	liqClaimedPrefix    = "liq/claimed/"
)

func addrHex(addr [20]byte) string {
	return hex.EncodeToString(addr[:])
}

func tokenMetaKey(symbol string) []byte {
	return []byte(tokenMetaPrefix + symbol)
}

func tokenBalanceKey(symbol string, addr [20]byte) []byte {
	return []byte(tokenBalancePrefix + symbol + "/" + addrHex(addr))
}

func tokenAllowanceKey(symbol string, owner, spender [20]byte) []byte {
	return []byte(tokenAllowPrefix + symbol + "/" + addrHex(owner) + "/" + addrHex(spender))
}

func tokenHoldersKey(symbol string) []byte {
	return []byte(tokenHoldersPrefix + symbol)
}

func campaignKey(id [32]byte) []byte {
	return []byte(campaignPrefix + hex.EncodeToString(id[:]))
}

func investmentKey(id [32]byte, investor [20]byte) []byte {
	return []byte(investmentPrefix + hex.EncodeToString(id[:]) + "/" + addrHex(investor))
}

func campaignIssuerIndexKey(issuer [20]byte) []byte {
	return []byte(campaignIssuerIdx + addrHex(issuer))
}

func campaignAssetIndexKey(asset string) []byte {
	return []byte(campaignAssetIdx + asset)
}

func payoutKey(id uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return []byte(payoutPrefix + hex.EncodeToString(buf[:]))
}

func payoutClaimedKey(id uint64, holder [20]byte) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], id)
	return []byte(payoutClaimedPrefix + hex.EncodeToString(buf[:]) + "/" + addrHex(holder))
}

func payoutAssetIndexKey(asset string) []byte {
	return []byte(payoutAssetIdx + asset)
}

func payoutOwnerIndexKey(owner [20]byte) []byte {
	return []byte(payoutOwnerIdx + addrHex(owner))
}

func liquidationKey(asset string) []byte {
	return []byte(liquidationPrefix + asset)
}

func liquidationClaimedKey(asset string, holder [20]byte) []byte {
	return []byte(liqClaimedPrefix + asset + "/" + addrHex(holder))
}
