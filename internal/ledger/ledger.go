// Package ledger is a live-cell store that only commits transactions whose
// scripts verify.
//
// Cells are kept in a leveldb database under the serialized out point, each
// committed transaction is recorded under its hash, and every commit is a
// single batch write.
package ledger

import (
	"sync"
	"time"

	"github.com/ArkLabsHQ/combinelock/pkg/ckb"
	"github.com/ArkLabsHQ/combinelock/pkg/vm"
	"github.com/btcsuite/btcd/txscript"
	cache "github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

var (
	// ErrUnknownCell is returned when a transaction reads a cell that
	// does not exist or is spent.
	ErrUnknownCell = errors.New("unknown or spent cell")

	// ErrDoubleSpend is returned when a transaction spends a cell more
	// than once.
	ErrDoubleSpend = errors.New("cell spent twice")

	// ErrDuplicateTx is returned when a transaction is already committed.
	ErrDuplicateTx = errors.New("transaction already committed")

	// ErrNotGenesis is returned when a genesis transaction spends cells.
	ErrNotGenesis = errors.New("genesis transaction has inputs")
)

// key prefixes
var (
	prefixCell = []byte{'C'}
	prefixTx   = []byte{'T'}
)

const defaultCellCacheTTL = 2 * time.Minute

// Options configure a ledger.
type Options struct {
	// Programs are the images scripts may run.
	Programs *vm.ProgramRegistry

	// SigCacheSize is the number of verified signatures remembered across
	// transactions.  Zero disables the cache.
	SigCacheSize uint

	// CellCacheTTL is how long a looked up cell stays cached.
	CellCacheTTL time.Duration

	// Limits bound the script work of a single transaction.
	Limits vm.Limits

	Logger log.FieldLogger
}

// Ledger is a live-cell store.  It is safe for concurrent use; commits are
// serialized.
type Ledger struct {
	mtx      sync.Mutex
	db       *leveldb.DB
	cells    *cache.Cache
	programs *vm.ProgramRegistry
	sigCache *txscript.SigCache
	limits   vm.Limits
	log      log.FieldLogger
	metrics  *metrics
}

// Open opens the ledger stored in the directory path, creating it when
// needed.
func Open(path string, opts Options) (*Ledger, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open ledger at %s", path)
	}
	return newLedger(db, opts)
}

// OpenMemory opens an empty ledger kept in memory.
func OpenMemory(opts Options) (*Ledger, error) {
	db, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open memory ledger")
	}
	return newLedger(db, opts)
}

func newLedger(db *leveldb.DB, opts Options) (*Ledger, error) {
	if opts.Programs == nil {
		opts.Programs = vm.NewProgramRegistry()
	}
	if opts.CellCacheTTL == 0 {
		opts.CellCacheTTL = defaultCellCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = log.StandardLogger()
	}

	l := &Ledger{
		db:       db,
		cells:    cache.New(opts.CellCacheTTL, 2*opts.CellCacheTTL),
		programs: opts.Programs,
		limits:   opts.Limits,
		log:      opts.Logger.WithField("module", "ledger"),
		metrics:  newMetrics(),
	}
	if opts.SigCacheSize > 0 {
		l.sigCache = txscript.NewSigCache(opts.SigCacheSize)
	}

	count, err := l.countCells()
	if err != nil {
		db.Close()
		return nil, err
	}
	l.metrics.liveCells.Set(float64(count))
	return l, nil
}

// Close closes the store.
func (l *Ledger) Close() error {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	l.cells.Flush()
	return l.db.Close()
}

func cellKey(op ckb.OutPoint) []byte {
	return append(append([]byte{}, prefixCell...), op.Serialize()...)
}

func txKey(h ckb.Hash) []byte {
	return append(append([]byte{}, prefixTx...), h[:]...)
}

// Cell returns the live cell at op.
func (l *Ledger) Cell(op ckb.OutPoint) (*ckb.CellMeta, error) {
	key := cellKey(op)
	if raw, ok := l.cells.Get(string(key)); ok {
		return ckb.DecodeCellMeta(raw.([]byte))
	}

	raw, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, errors.Wrapf(ErrUnknownCell, "cell %s", op)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read cell %s", op)
	}
	l.cells.SetDefault(string(key), raw)
	return ckb.DecodeCellMeta(raw)
}

// LiveCells calls fn for every live cell in out point order.
func (l *Ledger) LiveCells(fn func(*ckb.CellMeta) error) error {
	iter := l.db.NewIterator(util.BytesPrefix(prefixCell), nil)
	defer iter.Release()

	for iter.Next() {
		cell, err := ckb.DecodeCellMeta(iter.Value())
		if err != nil {
			return errors.Wrap(err, "corrupt cell record")
		}
		if err := fn(cell); err != nil {
			return err
		}
	}
	return iter.Error()
}

func (l *Ledger) countCells() (int, error) {
	count := 0
	err := l.LiveCells(func(*ckb.CellMeta) error {
		count++
		return nil
	})
	return count, err
}

// Committed reports whether the transaction with hash h is committed.
func (l *Ledger) Committed(h ckb.Hash) (bool, error) {
	return l.db.Has(txKey(h), nil)
}

// Resolve returns tx together with the live cells it spends and reads.  Dep
// group deps are expanded in place.
func (l *Ledger) Resolve(tx *ckb.Transaction) (*vm.ResolvedTransaction, error) {
	rtx := &vm.ResolvedTransaction{Transaction: tx}

	spent := make(map[ckb.OutPoint]struct{}, len(tx.Inputs))
	for i, in := range tx.Inputs {
		op := in.PreviousOutput
		if _, ok := spent[op]; ok {
			return nil, errors.Wrapf(ErrDoubleSpend, "input %d %s", i, op)
		}
		spent[op] = struct{}{}

		cell, err := l.Cell(op)
		if err != nil {
			return nil, errors.Wrapf(err, "input %d", i)
		}
		rtx.Inputs = append(rtx.Inputs, *cell)
	}

	for i, dep := range tx.CellDeps {
		cell, err := l.Cell(dep.OutPoint)
		if err != nil {
			return nil, errors.Wrapf(err, "cell dep %d", i)
		}
		if dep.DepType == ckb.DepTypeCode {
			rtx.CellDeps = append(rtx.CellDeps, *cell)
			continue
		}

		points, err := ckb.DecodeOutPointVec(cell.Data)
		if err != nil {
			return nil, errors.Wrapf(err, "cell dep %d is not a dep "+
				"group", i)
		}
		for _, op := range points {
			member, err := l.Cell(op)
			if err != nil {
				return nil, errors.Wrapf(err, "dep group %d", i)
			}
			rtx.CellDeps = append(rtx.CellDeps, *member)
		}
	}
	return rtx, nil
}

// Genesis commits a transaction that creates cells without spending any
// and without running scripts.
func (l *Ledger) Genesis(tx *ckb.Transaction) (ckb.Hash, error) {
	if len(tx.Inputs) > 0 {
		return ckb.Hash{}, ErrNotGenesis
	}

	l.mtx.Lock()
	defer l.mtx.Unlock()

	return l.commit(&vm.ResolvedTransaction{Transaction: tx})
}

// Submit verifies the scripts of tx against the live cells and commits it
// when every script group passes.  A script failure is returned as the
// *vm.GroupError of the failing group.
func (l *Ledger) Submit(tx *ckb.Transaction) (ckb.Hash, error) {
	l.mtx.Lock()
	defer l.mtx.Unlock()

	if committed, err := l.Committed(tx.Hash()); err != nil {
		return ckb.Hash{}, err
	} else if committed {
		return ckb.Hash{}, errors.Wrapf(ErrDuplicateTx, "tx %s", tx.Hash())
	}

	rtx, err := l.Resolve(tx)
	if err != nil {
		return ckb.Hash{}, err
	}

	engine, err := vm.NewEngine(rtx, l.programs, l.sigCache, l.limits)
	if err != nil {
		return ckb.Hash{}, err
	}
	txLog := l.log.WithField("tx", engine.TxHash().String())
	engine.SetLogger(txLog)

	start := time.Now()
	err = engine.Verify()
	l.metrics.verifyDur.Observe(time.Since(start).Seconds())
	if err != nil {
		l.metrics.verified.WithLabelValues(resultRejected).Inc()
		txLog.WithError(err).Info("transaction rejected")
		return ckb.Hash{}, err
	}
	l.metrics.verified.WithLabelValues(resultAccepted).Inc()

	return l.commit(rtx)
}

// commit spends the inputs and creates the outputs of rtx in one write.
// The caller must hold the lock.
func (l *Ledger) commit(rtx *vm.ResolvedTransaction) (ckb.Hash, error) {
	tx := rtx.Transaction
	h := tx.Hash()

	committed, err := l.Committed(h)
	if err != nil {
		return ckb.Hash{}, err
	}
	if committed {
		return ckb.Hash{}, errors.Wrapf(ErrDuplicateTx, "tx %s", h)
	}
	if len(tx.OutputsData) != len(tx.Outputs) {
		return ckb.Hash{}, errors.Errorf("%d outputs data for %d outputs",
			len(tx.OutputsData), len(tx.Outputs))
	}

	batch := new(leveldb.Batch)
	for _, in := range rtx.Inputs {
		batch.Delete(cellKey(in.OutPoint))
	}
	for i := range tx.Outputs {
		cell := ckb.CellMeta{
			OutPoint: ckb.OutPoint{TxHash: h, Index: uint32(i)},
			Output:   tx.Outputs[i],
			Data:     tx.OutputsData[i],
		}
		batch.Put(cellKey(cell.OutPoint), cell.Serialize())
	}
	batch.Put(txKey(h), tx.Serialize())

	if err := l.db.Write(batch, &opt.WriteOptions{Sync: true}); err != nil {
		return ckb.Hash{}, errors.Wrapf(err, "failed to commit tx %s", h)
	}

	for _, in := range rtx.Inputs {
		l.cells.Delete(string(cellKey(in.OutPoint)))
	}
	l.metrics.liveCells.Add(float64(len(tx.Outputs) - len(rtx.Inputs)))

	l.log.WithFields(log.Fields{
		"tx":      h.String(),
		"inputs":  len(rtx.Inputs),
		"outputs": len(tx.Outputs),
	}).Info("transaction committed")
	return h, nil
}
