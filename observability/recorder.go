package observability

import (
	"encoding/hex"
	"log/slog"

	"granary/core/events"
	"granary/observability/metrics"
)

// Recorder bridges engine events into structured logs and prometheus metrics.
// It satisfies events.Emitter so it can be injected into the vault engine and
// the protocol registry.
type Recorder struct {
	logger *slog.Logger
	vault  *metrics.VaultMetrics
}

// NewRecorder constructs a recorder. A nil logger falls back to the default
// slog logger.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger, vault: metrics.Vault()}
}

// Emit implements events.Emitter.
func (r *Recorder) Emit(event events.Event) {
	if r == nil || event == nil {
		return
	}
	switch evt := event.(type) {
	case events.Deposited:
		r.vault.RecordDeposit()
		r.logger.Info("deposit accepted",
			"user", hexAddr(evt.User), "amount", evt.Amount.String(), "epoch", evt.Epoch)
	case events.Withdrawn:
		r.vault.RecordWithdrawal()
		r.logger.Info("withdrawal accepted",
			"user", hexAddr(evt.User), "amount", evt.Amount.String(), "epoch", evt.Epoch)
	case events.RewardPaid:
		r.vault.RecordRewardPaid()
		r.logger.Info("reward settled",
			"user", hexAddr(evt.User), "amount", evt.Amount.String(), "epoch", evt.Epoch)
	case events.EpochHarvested:
		r.vault.RecordHarvest(evt.Epoch, evt.TotalWeightedShares, evt.AccRewardPerShare, evt.Dust)
		if evt.Distributed {
			r.vault.RecordCarryOver(nil)
		}
		r.logger.Info("epoch harvested",
			"epoch", evt.Epoch, "reward", evt.Reward.String(), "distributed", evt.Distributed)
	case events.RewardCarriedOver:
		r.vault.RecordCarryOver(evt.Amount)
		r.logger.Warn("reward carried over",
			"epoch", evt.Epoch, "amount", evt.Amount.String())
	case events.PositionClosed:
		r.logger.Info("position closed", "user", hexAddr(evt.User), "epoch", evt.Epoch)
	case events.ProtocolRegistered:
		r.logger.Info("protocol registered", "protocol", evt.ProtocolID, "name", evt.Name)
	case events.AdapterRegistered:
		r.logger.Info("adapter registered", "protocol", evt.ProtocolID, "asset", hexAddr(evt.Asset))
	case events.AdapterRemoved:
		r.logger.Info("adapter removed",
			"protocol", evt.ProtocolID, "asset", hexAddr(evt.Asset), "cleared_active", evt.ClearedActive)
	case events.ActiveProtocolSet:
		r.logger.Info("active protocol set", "protocol", evt.ProtocolID)
	default:
		r.logger.Debug("event", "type", event.EventType())
	}
}

func hexAddr(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
