// Package positions turns raw GMX Reader records into normalized position
// snapshots: market and token enrichment, decimal adjustment, and derived
// pricing fields.
package positions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	"github.com/archon-research/gmx-tracker/gmx"
	"github.com/archon-research/gmx-tracker/internal/ports/outbound"
)

// usdScaleDecimals is the fixed-point scaling of GMX USD amounts.
const usdScaleDecimals = 30

// Compile-time check that Service implements outbound.PositionSource.
var _ outbound.PositionSource = (*Service)(nil)

// Config holds configuration for the position service.
type Config struct {
	Logger *slog.Logger
}

type Service struct {
	reader outbound.PositionReader
	prices outbound.PriceProvider
	logger *slog.Logger
}

// NewService creates a position service. prices may be nil, in which case
// mark price, leverage and profit fields stay zero.
func NewService(reader outbound.PositionReader, prices outbound.PriceProvider, config Config) (*Service, error) {
	if reader == nil {
		return nil, fmt.Errorf("position reader is required")
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Service{
		reader: reader,
		prices: prices,
		logger: config.Logger.With("component", "positions"),
	}, nil
}

// AccountPositions returns all open positions owned by account. The read is
// all-or-nothing: any failed or malformed underlying query yields a
// *gmx.FetchError and no partial result.
func (s *Service) AccountPositions(ctx context.Context, account common.Address) ([]gmx.Position, error) {
	raw, err := s.reader.RawAccountPositions(ctx, account)
	if err != nil {
		return nil, &gmx.FetchError{Op: "getAccountPositions", Err: err}
	}

	for _, r := range raw {
		if r.Account != account {
			return nil, &gmx.FetchError{
				Op:  "getAccountPositions",
				Err: fmt.Errorf("record owned by %s in response for %s", r.Account.Hex(), account.Hex()),
			}
		}
	}

	if len(raw) == 0 {
		return []gmx.Position{}, nil
	}

	markets, tokens, err := s.resolveMarkets(ctx, raw)
	if err != nil {
		return nil, &gmx.FetchError{Op: "getMarket", Err: err}
	}

	metadata, err := s.reader.TokenMetadata(ctx, tokens)
	if err != nil {
		return nil, &gmx.FetchError{Op: "tokenMetadata", Err: err}
	}

	tickers := s.tickerPrices(ctx)

	positions := make([]gmx.Position, 0, len(raw))
	for _, r := range raw {
		position, err := s.mapPosition(r, markets[r.Market], metadata, tickers)
		if err != nil {
			return nil, &gmx.FetchError{Op: "getAccountPositions", Err: err}
		}
		positions = append(positions, position)
	}

	return positions, nil
}

// resolveMarkets fetches composition for every distinct market and collects
// the token addresses needing metadata.
func (s *Service) resolveMarkets(ctx context.Context, raw []outbound.RawPosition) (map[common.Address]outbound.MarketInfo, []common.Address, error) {
	markets := make(map[common.Address]outbound.MarketInfo)
	tokenSet := make(map[common.Address]bool)

	for _, r := range raw {
		if _, ok := markets[r.Market]; !ok {
			info, err := s.reader.Market(ctx, r.Market)
			if err != nil {
				return nil, nil, err
			}
			markets[r.Market] = info
			tokenSet[info.IndexToken] = true
		}
		tokenSet[r.CollateralToken] = true
	}

	tokens := make([]common.Address, 0, len(tokenSet))
	for token := range tokenSet {
		tokens = append(tokens, token)
	}
	return markets, tokens, nil
}

// tickerPrices fetches current oracle prices. Ticker failures degrade the
// derived fields to zero instead of failing the read; ownership data is
// complete without them.
func (s *Service) tickerPrices(ctx context.Context) map[common.Address]outbound.TickerPrice {
	if s.prices == nil {
		return nil
	}
	tickers, err := s.prices.TickerPrices(ctx)
	if err != nil {
		s.logger.Warn("ticker prices unavailable, derived fields will be zero", "error", err)
		return nil
	}
	return tickers
}

func (s *Service) mapPosition(
	r outbound.RawPosition,
	market outbound.MarketInfo,
	metadata map[common.Address]outbound.TokenMetadata,
	tickers map[common.Address]outbound.TickerPrice,
) (gmx.Position, error) {
	indexMeta, ok := metadata[market.IndexToken]
	if !ok {
		return gmx.Position{}, fmt.Errorf("missing metadata for index token %s", market.IndexToken.Hex())
	}
	collateralMeta, ok := metadata[r.CollateralToken]
	if !ok {
		return gmx.Position{}, fmt.Errorf("missing metadata for collateral token %s", r.CollateralToken.Hex())
	}

	sizeUSD := gmx.DisplayAmount(r.SizeInUSD, usdScaleDecimals)
	sizeInTokens := gmx.DisplayAmount(r.SizeInTokens, indexMeta.Decimals)

	var entryPrice float64
	if sizeInTokens > 0 {
		entryPrice = sizeUSD / sizeInTokens
	}

	var markPrice, collateralPrice float64
	if ticker, ok := tickers[market.IndexToken]; ok {
		markPrice = ticker.Mid(indexMeta.Decimals)
	}
	if ticker, ok := tickers[r.CollateralToken]; ok {
		collateralPrice = ticker.Mid(collateralMeta.Decimals)
	}

	collateralAmount := gmx.DisplayAmount(r.CollateralAmount, collateralMeta.Decimals)
	collateralUSD := collateralAmount * collateralPrice

	var leverage float64
	if collateralUSD > 0 {
		leverage = sizeUSD / collateralUSD
	}

	var percentProfit float64
	if entryPrice > 0 && markPrice > 0 {
		direction := 1.0
		if !r.IsLong {
			direction = -1.0
		}
		percentProfit = direction * (markPrice - entryPrice) / entryPrice * leverage * 100
	}

	modifiedAt := r.IncreasedAt
	if r.DecreasedAt > modifiedAt {
		modifiedAt = r.DecreasedAt
	}

	return gmx.Position{
		Account:          r.Account,
		Market:           r.Market,
		MarketSymbol:     indexMeta.Symbol,
		CollateralToken:  r.CollateralToken,
		CollateralSymbol: collateralMeta.Symbol,
		IsLong:           r.IsLong,

		SizeUSD:                                 r.SizeInUSD,
		SizeInTokens:                            r.SizeInTokens,
		CollateralAmount:                        r.CollateralAmount,
		BorrowingFactor:                         r.BorrowingFactor,
		FundingFeeAmountPerSize:                 r.FundingFeeAmountPerSize,
		LongTokenClaimableFundingAmountPerSize:  r.LongTokenClaimableFundingAmountPerSize,
		ShortTokenClaimableFundingAmountPerSize: r.ShortTokenClaimableFundingAmountPerSize,

		ModifiedAt: modifiedAt,

		EntryPrice:                 entryPrice,
		MarkPrice:                  markPrice,
		Leverage:                   leverage,
		InitialCollateralAmount:    collateralAmount,
		InitialCollateralAmountUSD: collateralUSD,
		PercentProfit:              percentProfit,
	}, nil
}
