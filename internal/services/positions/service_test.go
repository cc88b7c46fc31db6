package positions

import (
	"context"
	"errors"
	"math"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/adapters/outbound/memory"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

var (
	account   = common.HexToAddress("0x00000000000000000000000000000000000ABCD0")
	ethMarket = common.HexToAddress("0x70d95587d40A2caf56bd97485aB3Eec10Bee6336")
	wethToken = common.HexToAddress("0x82aF49447D8a07e3bd95BD0d56f35241523fBab1")
	usdcToken = common.HexToAddress("0xaf88d065e77c8cC2239327C5EDb3A432268e5831")
)

// pow10 returns 10^exp as a big integer.
func pow10(exp int64) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(exp), nil)
}

// scaled returns value * 10^exp.
func scaled(value int64, exp int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(value), pow10(exp))
}

func ethLongRaw() outbound.RawPosition {
	return outbound.RawPosition{
		Account:          account,
		Market:           ethMarket,
		CollateralToken:  usdcToken,
		SizeInUSD:        scaled(1000, 30), // 1000 USD
		SizeInTokens:     scaled(5, 17),    // 0.5 WETH
		CollateralAmount: scaled(250, 6),   // 250 USDC
		BorrowingFactor:  big.NewInt(0),
		IncreasedAt:      1700000000,
		DecreasedAt:      1700000500,
		IsLong:           true,
	}
}

func newTestService(t *testing.T) (*Service, *memory.PositionReader, *memory.PriceProvider) {
	t.Helper()

	reader := memory.NewPositionReader()
	reader.SetMarket(outbound.MarketInfo{
		Market:     ethMarket,
		IndexToken: wethToken,
		LongToken:  wethToken,
		ShortToken: usdcToken,
	})
	reader.SetTokenMetadata(wethToken, "ETH", 18)
	reader.SetTokenMetadata(usdcToken, "USDC", 6)

	prices := memory.NewPriceProvider()
	// WETH at 2000 USD: factor 10^(30-18).
	prices.SetPrice(wethToken, "ETH", scaled(2000, 12), scaled(2000, 12))
	// USDC at 1 USD: factor 10^(30-6).
	prices.SetPrice(usdcToken, "USDC", pow10(24), pow10(24))

	service, err := NewService(reader, prices, Config{})
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}
	return service, reader, prices
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-6
}

func TestService_AccountPositions_Mapping(t *testing.T) {
	service, reader, _ := newTestService(t)
	reader.SetPositions(account, []outbound.RawPosition{ethLongRaw()})

	positions, err := service.AccountPositions(context.Background(), account)
	if err != nil {
		t.Fatalf("AccountPositions() failed: %v", err)
	}
	if len(positions) != 1 {
		t.Fatalf("got %d positions, want 1", len(positions))
	}

	p := positions[0]
	if p.Key() != "ETH_long" {
		t.Errorf("key = %q, want ETH_long", p.Key())
	}
	if p.Account != account {
		t.Errorf("account = %s, want %s", p.Account.Hex(), account.Hex())
	}
	if p.CollateralSymbol != "USDC" {
		t.Errorf("collateral symbol = %q, want USDC", p.CollateralSymbol)
	}
	if !almostEqual(p.EntryPrice, 2000) {
		t.Errorf("entry price = %f, want 2000", p.EntryPrice)
	}
	if !almostEqual(p.MarkPrice, 2000) {
		t.Errorf("mark price = %f, want 2000", p.MarkPrice)
	}
	if !almostEqual(p.InitialCollateralAmount, 250) {
		t.Errorf("collateral amount = %f, want 250", p.InitialCollateralAmount)
	}
	if !almostEqual(p.InitialCollateralAmountUSD, 250) {
		t.Errorf("collateral usd = %f, want 250", p.InitialCollateralAmountUSD)
	}
	if !almostEqual(p.Leverage, 4) {
		t.Errorf("leverage = %f, want 4", p.Leverage)
	}
	if !almostEqual(p.PercentProfit, 0) {
		t.Errorf("percent profit = %f, want 0 at entry price", p.PercentProfit)
	}
	if p.ModifiedAt != 1700000500 {
		t.Errorf("modifiedAt = %d, want the later of increase/decrease", p.ModifiedAt)
	}
}

func TestService_AccountPositions_ProfitSign(t *testing.T) {
	service, reader, prices := newTestService(t)

	long := ethLongRaw()
	short := ethLongRaw()
	short.IsLong = false

	reader.SetPositions(account, []outbound.RawPosition{long, short})
	// Move the mark to 2200 while entry stays 2000.
	prices.SetPrice(wethToken, "ETH", scaled(2200, 12), scaled(2200, 12))

	positions, err := service.AccountPositions(context.Background(), account)
	if err != nil {
		t.Fatalf("AccountPositions() failed: %v", err)
	}
	if len(positions) != 2 {
		t.Fatalf("got %d positions, want 2", len(positions))
	}

	// +10% price move at 4x leverage: long +40%, short -40%.
	if !almostEqual(positions[0].PercentProfit, 40) {
		t.Errorf("long profit = %f, want 40", positions[0].PercentProfit)
	}
	if !almostEqual(positions[1].PercentProfit, -40) {
		t.Errorf("short profit = %f, want -40", positions[1].PercentProfit)
	}
}

func TestService_AccountPositions_Empty(t *testing.T) {
	service, _, _ := newTestService(t)

	positions, err := service.AccountPositions(context.Background(), account)
	if err != nil {
		t.Fatalf("AccountPositions() failed: %v", err)
	}
	if len(positions) != 0 {
		t.Errorf("got %d positions, want 0", len(positions))
	}
}

func TestService_AccountPositions_OwnershipFilter(t *testing.T) {
	service, reader, _ := newTestService(t)

	foreign := ethLongRaw()
	foreign.Account = common.HexToAddress("0x000000000000000000000000000000000000BEEF")
	reader.SetPositions(account, []outbound.RawPosition{foreign})

	_, err := service.AccountPositions(context.Background(), account)
	var fetchErr *gmx.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *gmx.FetchError for foreign-owned record, got %v", err)
	}
}

func TestService_AccountPositions_ReaderFailure(t *testing.T) {
	service, reader, _ := newTestService(t)
	reader.SetPositionsError(errors.New("rpc down"))

	_, err := service.AccountPositions(context.Background(), account)
	var fetchErr *gmx.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *gmx.FetchError, got %v", err)
	}
	if fetchErr.Op != "getAccountPositions" {
		t.Errorf("op = %q, want getAccountPositions", fetchErr.Op)
	}
}

func TestService_AccountPositions_MissingMetadataFailsRead(t *testing.T) {
	reader := memory.NewPositionReader()
	reader.SetMarket(outbound.MarketInfo{Market: ethMarket, IndexToken: wethToken})
	// No token metadata configured at all.
	reader.SetPositions(account, []outbound.RawPosition{ethLongRaw()})

	service, err := NewService(reader, memory.NewPriceProvider(), Config{})
	if err != nil {
		t.Fatalf("NewService() failed: %v", err)
	}

	_, err = service.AccountPositions(context.Background(), account)
	var fetchErr *gmx.FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("expected *gmx.FetchError for missing metadata, got %v", err)
	}
}

func TestService_AccountPositions_TickerFailureDegrades(t *testing.T) {
	service, reader, prices := newTestService(t)
	reader.SetPositions(account, []outbound.RawPosition{ethLongRaw()})
	prices.SetError(errors.New("api down"))

	positions, err := service.AccountPositions(context.Background(), account)
	if err != nil {
		t.Fatalf("AccountPositions() should degrade, not fail: %v", err)
	}

	p := positions[0]
	if p.MarkPrice != 0 || p.Leverage != 0 || p.PercentProfit != 0 {
		t.Errorf("derived fields = %f/%f/%f, want all zero without tickers",
			p.MarkPrice, p.Leverage, p.PercentProfit)
	}
	if !almostEqual(p.EntryPrice, 2000) {
		t.Errorf("entry price = %f, want 2000 (derived from chain data alone)", p.EntryPrice)
	}
}

func TestService_AccountPositions_ReadStability(t *testing.T) {
	service, reader, _ := newTestService(t)
	reader.SetPositions(account, []outbound.RawPosition{ethLongRaw()})

	first, err := service.AccountPositions(context.Background(), account)
	if err != nil {
		t.Fatalf("first read failed: %v", err)
	}
	second, err := service.AccountPositions(context.Background(), account)
	if err != nil {
		t.Fatalf("second read failed: %v", err)
	}

	if !gmx.SamePositions(first, second) {
		t.Error("two reads against unchanged state must compare equal")
	}
}
