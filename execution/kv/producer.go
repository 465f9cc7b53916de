package kv

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	coreda "github.com/inertialabsxyz/movement/core/da"
)

// batchProducer periodically submits the pending mempool transactions to the DA layer.
type batchProducer struct {
	mempool   *Mempool
	submitter BatchSubmitter
	interval  time.Duration
	logger    zerolog.Logger
}

func (p *batchProducer) run(ctx context.Context) error {
	if p.submitter == nil {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			p.produce(ctx)
		}
	}
}

// produce submits one batch. Transactions of a failed submission are requeued.
func (p *batchProducer) produce(ctx context.Context) {
	txs := p.mempool.Take()
	if len(txs) == 0 {
		return
	}

	height, err := p.submitter.SubmitBatch(ctx, coreda.Batch{Transactions: txs})
	if err != nil {
		p.mempool.Requeue(txs)
		p.logger.Warn().Err(err).Int("num_txs", len(txs)).Msg("failed to submit batch, requeued transactions")
		return
	}
	p.logger.Debug().Uint64("da_height", height).Int("num_txs", len(txs)).Msg("batch submitted")
}
