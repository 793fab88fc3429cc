package marketdata

import (
	"context"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/moznion/go-optional"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

// klinesPageSize is the Binance REST klines page limit.
const klinesPageSize = 500

// KlinesService abstracts the Binance klines endpoint for mocking.
type KlinesService interface {
	Symbol(symbol string) KlinesService
	Interval(interval string) KlinesService
	StartTime(startTime int64) KlinesService
	EndTime(endTime int64) KlinesService
	Limit(limit int) KlinesService
	Do(ctx context.Context) ([]*binance.Kline, error)
}

// KlinesClient creates kline services.
type KlinesClient interface {
	NewKlinesService() KlinesService
}

type realKlinesClient struct {
	client *binance.Client
}

func (c *realKlinesClient) NewKlinesService() KlinesService {
	return &realKlinesService{service: c.client.NewKlinesService()}
}

type realKlinesService struct {
	service *binance.KlinesService
}

func (s *realKlinesService) Symbol(symbol string) KlinesService {
	s.service = s.service.Symbol(symbol)

	return s
}

func (s *realKlinesService) Interval(interval string) KlinesService {
	s.service = s.service.Interval(interval)

	return s
}

func (s *realKlinesService) StartTime(startTime int64) KlinesService {
	s.service = s.service.StartTime(startTime)

	return s
}

func (s *realKlinesService) EndTime(endTime int64) KlinesService {
	s.service = s.service.EndTime(endTime)

	return s
}

func (s *realKlinesService) Limit(limit int) KlinesService {
	s.service = s.service.Limit(limit)

	return s
}

func (s *realKlinesService) Do(ctx context.Context) ([]*binance.Kline, error) {
	return s.service.Do(ctx)
}

// Downloader pages historical klines out of the Binance REST API into
// a HistoricalSource. Downloads are resumable: already stored bars are
// skipped on ingest, so overlapping ranges cost nothing.
type Downloader struct {
	client KlinesClient
	store  *HistoricalSource
	logger *logger.Logger
}

// NewDownloader creates a downloader over the public Binance API. No
// credentials are needed for klines.
func NewDownloader(store *HistoricalSource, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Downloader{
		client: &realKlinesClient{client: binance.NewClient("", "")},
		store:  store,
		logger: log,
	}
}

// newDownloaderWithClient injects a mock klines client for tests.
func newDownloaderWithClient(client KlinesClient, store *HistoricalSource, log *logger.Logger) *Downloader {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Downloader{client: client, store: store, logger: log}
}

// Download fetches klines for [from, to] and ingests them. It returns
// the number of bars fetched from the API, which may exceed the number
// of new rows when ranges overlap previous downloads.
func (d *Downloader) Download(ctx context.Context, symbol string, interval Interval, from, to time.Time, onProgress optional.Option[OnDownloadProgress]) (int, error) {
	if _, err := interval.Minutes(); err != nil {
		return 0, err
	}

	endMillis := to.UnixMilli()
	currentStart := from.UnixMilli()
	fetched := 0

	for {
		klines, err := d.client.NewKlinesService().
			Symbol(symbol).
			Interval(string(interval)).
			StartTime(currentStart).
			EndTime(endMillis).
			Limit(klinesPageSize).
			Do(ctx)
		if err != nil {
			return fetched, errors.Wrap(errors.ErrCodeMarketDataFetchFailed, "failed to fetch klines from Binance", err)
		}

		bars, err := convertKlines(symbol, klines)
		if err != nil {
			return fetched, err
		}

		if err := d.store.Ingest(ctx, bars); err != nil {
			return fetched, err
		}

		fetched += len(bars)

		onProgress.IfSome(func(report OnDownloadProgress) {
			report(fetched, "downloading "+symbol+" klines")
		})

		// Last page.
		if len(klines) < klinesPageSize {
			break
		}

		// Next page starts just past the last close to avoid overlap.
		currentStart = klines[len(klines)-1].CloseTime + 1
		if currentStart >= endMillis {
			break
		}
	}

	d.logger.Info("kline download complete",
		zap.String("symbol", symbol),
		zap.String("interval", string(interval)),
		zap.Int("bars", fetched))

	return fetched, nil
}

func convertKlines(symbol string, klines []*binance.Kline) ([]types.MarketData, error) {
	bars := make([]types.MarketData, 0, len(klines))

	for _, k := range klines {
		bar, err := convertKline(symbol, k)
		if err != nil {
			return nil, err
		}

		bars = append(bars, bar)
	}

	return bars, nil
}

func convertKline(symbol string, k *binance.Kline) (types.MarketData, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable kline open", err)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable kline high", err)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable kline low", err)
	}

	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable kline close", err)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable kline volume", err)
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   time.UnixMilli(k.OpenTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
