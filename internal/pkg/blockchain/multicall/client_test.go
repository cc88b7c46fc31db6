package multicall

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/internal/pkg/blockchain/abis"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

type fakeCaller struct {
	lastMsg   ethereum.CallMsg
	lastBlock *big.Int
	response  []byte
	err       error
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.lastMsg = msg
	f.lastBlock = blockNumber
	return f.response, f.err
}

func (f *fakeCaller) BalanceAt(_ context.Context, _ common.Address, _ *big.Int) (*big.Int, error) {
	return nil, errors.New("not implemented")
}

func packAggregate3Response(t *testing.T, results []outbound.Result) []byte {
	t.Helper()

	mcABI, err := abis.GetMulticall3ABI()
	if err != nil {
		t.Fatalf("failed to load multicall3 ABI: %v", err)
	}

	raw := make([]struct {
		Success    bool   `json:"success"`
		ReturnData []byte `json:"returnData"`
	}, len(results))
	for i, r := range results {
		raw[i].Success = r.Success
		raw[i].ReturnData = r.ReturnData
	}

	packed, err := mcABI.Methods["aggregate3"].Outputs.Pack(raw)
	if err != nil {
		t.Fatalf("failed to pack fake response: %v", err)
	}
	return packed
}

func TestClient_Execute(t *testing.T) {
	mc3 := common.HexToAddress("0xcA11bde05977b3631167028862bE2a173976CA11")
	caller := &fakeCaller{
		response: packAggregate3Response(t, []outbound.Result{
			{Success: true, ReturnData: []byte{0x01}},
			{Success: false, ReturnData: nil},
		}),
	}

	client, err := NewClient(caller, mc3)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	calls := []outbound.Call{
		{Target: common.HexToAddress("0x01"), AllowFailure: true, CallData: []byte{0xaa}},
		{Target: common.HexToAddress("0x02"), AllowFailure: true, CallData: []byte{0xbb}},
	}

	results, err := client.Execute(context.Background(), calls, big.NewInt(123))
	if err != nil {
		t.Fatalf("Execute() failed: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if !results[0].Success || results[1].Success {
		t.Errorf("success flags = %v/%v, want true/false", results[0].Success, results[1].Success)
	}
	if len(results[0].ReturnData) != 1 || results[0].ReturnData[0] != 0x01 {
		t.Errorf("unexpected return data: %x", results[0].ReturnData)
	}

	if caller.lastMsg.To == nil || *caller.lastMsg.To != mc3 {
		t.Errorf("call target = %v, want multicall3 address", caller.lastMsg.To)
	}
	if caller.lastBlock == nil || caller.lastBlock.Int64() != 123 {
		t.Errorf("block number = %v, want 123", caller.lastBlock)
	}
}

func TestClient_Execute_EmptyCalls(t *testing.T) {
	caller := &fakeCaller{err: errors.New("should not be called")}
	client, err := NewClient(caller, common.Address{})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	results, err := client.Execute(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("Execute() with no calls failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("got %d results, want 0", len(results))
	}
}

func TestClient_Execute_CallError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("rpc down")}
	client, err := NewClient(caller, common.Address{})
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	_, err = client.Execute(context.Background(), []outbound.Call{{Target: common.HexToAddress("0x01")}}, nil)
	if err == nil {
		t.Fatal("expected error when the underlying call fails")
	}
}
