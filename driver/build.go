package driver

import (
	"fmt"

	"hftbacktest-go/bus"
	"hftbacktest-go/config"
	"hftbacktest-go/domain"
	"hftbacktest-go/exchange"
	"hftbacktest-go/latency"
	"hftbacktest-go/local"
	"hftbacktest-go/marketdepth"
	"hftbacktest-go/queue"
	"hftbacktest-go/reader"
)

func assetTypeFromName(name string) (domain.AssetType, error) {
	switch name {
	case "", "linear":
		return domain.Linear{}, nil
	case "inverse":
		return domain.Inverse{}, nil
	default:
		return nil, fmt.Errorf("config: unknown asset_type %q", name)
	}
}

func queueModelFromName(name string) (queue.Model, error) {
	switch name {
	case "", "risk_averse":
		return &queue.RiskAverse{}, nil
	case "prob_log":
		return queue.NewProb(queue.LogProfile, queue.ProbVariant1), nil
	case "prob_identity":
		return queue.NewProb(queue.IdentityProfile, queue.ProbVariant1), nil
	case "prob_square":
		return queue.NewProb(queue.SquareProfile, queue.ProbVariant1), nil
	default:
		return nil, fmt.Errorf("config: unknown queue_model %q", name)
	}
}

func latencyModelFromConfig(cfg config.AssetConfig) (latency.Model, error) {
	switch cfg.LatencyModel {
	case "", "constant":
		return &latency.Constant{EntryLatency: cfg.EntryLatencyNS, ResponseLatency: cfg.ResponseLatency}, nil
	case "feed":
		return &latency.FeedDerived{
			Direction: latency.DirectionSymmetric,
			EntryMul:  1,
			RespMul:   1,
		}, nil
	default:
		return nil, fmt.Errorf("config: unknown latency_model %q", cfg.LatencyModel)
	}
}

// BuildAsset wires one asset's full processor pair from a config
// section: a shared chunk cache feeding two DataReaders (one keyed by
// exch_ts for the Exchange side, one by local_ts for the Local side),
// independent Depth instances, a shared State (exchange-authoritative
// per SPEC_FULL §12), and the configured latency/queue-model strategies.
func BuildAsset(cfg config.AssetConfig) (*Asset, error) {
	asset, err := assetTypeFromName(cfg.AssetType)
	if err != nil {
		return nil, err
	}
	qm, err := queueModelFromName(cfg.QueueModel)
	if err != nil {
		return nil, err
	}
	exchLatency, err := latencyModelFromConfig(cfg)
	if err != nil {
		return nil, err
	}
	localLatency, err := latencyModelFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	sharedCache := reader.NewSharedCache()
	exchReader := reader.New(sharedCache)
	localReader := reader.New(sharedCache)
	for _, f := range cfg.DataFiles {
		exchReader.AddFile(f)
		localReader.AddFile(f)
	}

	exchDepth := marketdepth.New(cfg.TickSize, cfg.LotSize)
	localDepth := marketdepth.New(cfg.TickSize, cfg.LotSize)

	if cfg.SnapshotFile != "" {
		snapReader := reader.New(reader.NewSharedCache())
		snapReader.AddFile(cfg.SnapshotFile)
		var rows []domain.Event
		for {
			row, ok := snapReader.Next()
			if !ok {
				break
			}
			rows = append(rows, row)
		}
		exchDepth.ApplySnapshot(rows)
		localDepth.ApplySnapshot(rows)
	}

	state := domain.NewState(cfg.StartPosition, cfg.StartBalance, 0, cfg.MakerFee, cfg.TakerFee, asset, cfg.LastTradesCap, false)

	toLocal, toExch := bus.New(), bus.New()

	exchProc := exchange.New(exchReader, toLocal, toExch, exchDepth, state, exchLatency, qm)
	localProc := local.New(localReader, toExch, toLocal, localDepth, state, localLatency)

	return &Asset{Name: cfg.Name, Local: localProc, Exchange: exchProc}, nil
}

// BuildDriver wires every configured asset into one Driver.
func BuildDriver(cfg *config.RunConfig) (*Driver, error) {
	assets := make([]*Asset, 0, len(cfg.Assets))
	for _, ac := range cfg.Assets {
		a, err := BuildAsset(ac)
		if err != nil {
			return nil, fmt.Errorf("building asset %q: %w", ac.Name, err)
		}
		assets = append(assets, a)
	}
	return New(assets), nil
}
