package facet

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
)

// boostFiller is the byte repeated through the mine-boost region. Non-zero
// so every boost byte is metered at the non-zero calldata rate.
const boostFiller byte = 0x46

// facetTxType is the leading byte of the Facet transaction envelope.
const facetTxType byte = 0x46

// facetPayload is the RLP body of a mine transaction: an empty L2 call
// carrying only mine-boost data.
type facetPayload struct {
	ChainID  uint64
	To       []byte
	Value    uint64
	MaxGas   uint64
	Data     []byte
	MineData []byte
}

// BuildMinePayload returns the full calldata for a mine transaction of
// exactly sizeBytes bytes: the protocol framing followed by a mine-boost
// region of sizeBytes - TxOverheadBytes filler bytes. sizeBytes must exceed
// TxOverheadBytes.
func BuildMinePayload(chainID int64, sizeBytes int) ([]byte, error) {
	if sizeBytes <= TxOverheadBytes {
		return nil, fmt.Errorf("payload size %d does not exceed protocol overhead %d", sizeBytes, TxOverheadBytes)
	}

	boost := make([]byte, sizeBytes-TxOverheadBytes)
	for i := range boost {
		boost[i] = boostFiller
	}

	body, err := rlp.EncodeToBytes(&facetPayload{
		ChainID:  uint64(chainID),
		To:       InboxAddress.Bytes(),
		MineData: boost,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode mine payload: %w", err)
	}

	payload := make([]byte, 0, len(body)+1)
	payload = append(payload, facetTxType)
	payload = append(payload, body...)

	// RLP framing is a handful of bytes shy of the fixed overhead budget;
	// pad with filler so the wire size matches the requested size exactly.
	for len(payload) < sizeBytes {
		payload = append(payload, boostFiller)
	}
	return payload[:sizeBytes], nil
}
