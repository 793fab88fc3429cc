package marketdata

import (
	"context"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/rxtech-lab/helix-trading/internal/logger"
	"github.com/rxtech-lab/helix-trading/internal/types"
	"github.com/rxtech-lab/helix-trading/pkg/errors"
)

const (
	defaultStreamURL = "wss://stream.binance.com:9443/ws"

	// Binance pings every few minutes; an idle read past this deadline
	// means the connection is dead.
	streamReadWait  = 5 * time.Minute
	streamWriteWait = 10 * time.Second
)

// wsKlineEvent is the Binance kline stream payload.
type wsKlineEvent struct {
	EventType string  `json:"e"`
	EventTime int64   `json:"E"`
	Symbol    string  `json:"s"`
	Kline     wsKline `json:"k"`
}

type wsKline struct {
	StartTime int64  `json:"t"`
	EndTime   int64  `json:"T"`
	Symbol    string `json:"s"`
	Interval  string `json:"i"`
	Open      string `json:"o"`
	Close     string `json:"c"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
	IsFinal   bool   `json:"x"`
}

// LiveSource streams completed candles from the Binance kline
// websocket. In-progress kline updates are dropped: one bar is emitted
// per closed candle boundary.
type LiveSource struct {
	baseURL string
	dialer  *websocket.Dialer
	logger  *logger.Logger
}

// NewLiveSource creates a stream source against the public Binance
// websocket endpoint.
func NewLiveSource(log *logger.Logger) *LiveSource {
	return newLiveSourceWithURL(defaultStreamURL, log)
}

// newLiveSourceWithURL points the source at a test server.
func newLiveSourceWithURL(baseURL string, log *logger.Logger) *LiveSource {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &LiveSource{
		baseURL: baseURL,
		dialer:  websocket.DefaultDialer,
		logger:  log,
	}
}

// Stream yields one bar per completed candle until the context is
// cancelled or the connection fails. Cancellation ends the iteration
// without an error; any other connection failure is yielded as a
// final error.
func (s *LiveSource) Stream(ctx context.Context, symbol string, interval Interval) iter.Seq2[types.MarketData, error] {
	return func(yield func(types.MarketData, error) bool) {
		if _, err := interval.Minutes(); err != nil {
			yield(types.MarketData{}, err)

			return
		}

		url := fmt.Sprintf("%s/%s@kline_%s", s.baseURL, strings.ToLower(symbol), interval)

		conn, resp, err := s.dialer.DialContext(ctx, url, nil)
		if err != nil {
			yield(types.MarketData{}, errors.Wrapf(errors.ErrCodeMarketDataFetchFailed, err, "failed to connect to %s", url))

			return
		}

		if resp != nil && resp.Body != nil {
			resp.Body.Close()
		}

		defer conn.Close()

		// Unblock the read loop when the context is cancelled.
		stop := make(chan struct{})
		defer close(stop)

		go func() {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(streamWriteWait))
				conn.Close()
			case <-stop:
			}
		}()

		_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))
		conn.SetPingHandler(func(appData string) error {
			_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))

			return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(streamWriteWait))
		})

		s.logger.Info("kline stream connected",
			zap.String("symbol", symbol),
			zap.String("interval", string(interval)))

		var lastEmitted int64 = -1

		for {
			var event wsKlineEvent

			if err := conn.ReadJSON(&event); err != nil {
				if ctx.Err() != nil {
					return
				}

				yield(types.MarketData{}, errors.Wrap(errors.ErrCodeStreamClosed, "kline stream closed", err))

				return
			}

			_ = conn.SetReadDeadline(time.Now().Add(streamReadWait))

			if !event.Kline.IsFinal || event.Kline.StartTime <= lastEmitted {
				continue
			}

			bar, err := convertWsKline(symbol, event.Kline)
			if err != nil {
				if !yield(types.MarketData{}, err) {
					return
				}

				continue
			}

			lastEmitted = event.Kline.StartTime

			if !yield(bar, nil) {
				return
			}
		}
	}
}

func convertWsKline(symbol string, k wsKline) (types.MarketData, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable stream kline open", err)
	}

	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable stream kline high", err)
	}

	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable stream kline low", err)
	}

	closePrice, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable stream kline close", err)
	}

	volume, err := strconv.ParseFloat(k.Volume, 64)
	if err != nil {
		return types.MarketData{}, errors.Wrap(errors.ErrCodeMarketDataParseFailed, "unparseable stream kline volume", err)
	}

	return types.MarketData{
		Symbol: symbol,
		Time:   time.UnixMilli(k.StartTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePrice,
		Volume: volume,
	}, nil
}
