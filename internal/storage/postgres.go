// Package storage buffers collected analytics records and writes them to
// PostgreSQL in batches.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/jonesrussell/linkbio/internal/domain"
	"github.com/jonesrussell/linkbio/internal/sink"
	infralogger "github.com/jonesrussell/linkbio/infrastructure/logger"
)

const (
	// insertBatchSize is the maximum number of rows per INSERT statement.
	insertBatchSize = 50

	flushTimeout = 5 * time.Second
)

// Buffer is a bounded channel of records awaiting a flush.
type Buffer struct {
	records chan domain.Record
	closed  chan struct{}
	once    sync.Once
}

// NewBuffer creates a buffer holding up to capacity records.
func NewBuffer(capacity int) *Buffer {
	return &Buffer{
		records: make(chan domain.Record, capacity),
		closed:  make(chan struct{}),
	}
}

// Send enqueues rec without blocking. It returns false when the buffer is full.
func (b *Buffer) Send(rec domain.Record) bool {
	select {
	case b.records <- rec:
		return true
	default:
		return false
	}
}

// Len returns the number of queued records.
func (b *Buffer) Len() int {
	return len(b.records)
}

// Cap returns the buffer capacity.
func (b *Buffer) Cap() int {
	return cap(b.records)
}

// Close stops the flush loop after a final drain. Safe to call repeatedly.
func (b *Buffer) Close() {
	b.once.Do(func() {
		close(b.closed)
	})
}

// Store drains a Buffer into PostgreSQL.
type Store struct {
	db             *sql.DB
	buffer         *Buffer
	log            infralogger.Logger
	flushInterval  time.Duration
	flushThreshold int
	onFlush        func(table string, rows int, err error)
	wg             sync.WaitGroup
}

// NewStore creates a Store that flushes every flushInterval or once
// flushThreshold records are pending.
func NewStore(
	db *sql.DB,
	buffer *Buffer,
	log infralogger.Logger,
	flushInterval time.Duration,
	flushThreshold int,
) *Store {
	return &Store{
		db:             db,
		buffer:         buffer,
		log:            log,
		flushInterval:  flushInterval,
		flushThreshold: flushThreshold,
	}
}

// OnFlush registers a callback invoked after every batch insert.
func (s *Store) OnFlush(fn func(table string, rows int, err error)) {
	s.onFlush = fn
}

// Start launches the flush loop.
func (s *Store) Start() {
	s.wg.Add(1)
	go s.flushLoop()
}

// Stop closes the buffer and waits for the final flush.
func (s *Store) Stop() {
	s.buffer.Close()
	s.wg.Wait()
}

func (s *Store) flushLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	batch := make([]domain.Record, 0, s.flushThreshold)

	for {
		select {
		case rec := <-s.buffer.records:
			batch = append(batch, rec)
			if len(batch) >= s.flushThreshold {
				s.flush(batch)
				batch = make([]domain.Record, 0, s.flushThreshold)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				s.flush(batch)
				batch = make([]domain.Record, 0, s.flushThreshold)
			}

		case <-s.buffer.closed:
			s.drain(&batch)
			if len(batch) > 0 {
				s.flush(batch)
			}
			return
		}
	}
}

func (s *Store) drain(batch *[]domain.Record) {
	for {
		select {
		case rec := <-s.buffer.records:
			*batch = append(*batch, rec)
		default:
			return
		}
	}
}

// flush writes batch grouped by table, in chunks of insertBatchSize.
func (s *Store) flush(batch []domain.Record) {
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()

	byTable := make(map[string][]domain.Record)
	var order []string
	for _, rec := range batch {
		t := rec.Table()
		if _, ok := byTable[t]; !ok {
			order = append(order, t)
		}
		byTable[t] = append(byTable[t], rec)
	}

	for _, table := range order {
		rows := byTable[table]
		for start := 0; start < len(rows); start += insertBatchSize {
			end := min(start+insertBatchSize, len(rows))
			chunk := rows[start:end]

			err := s.batchInsert(ctx, chunk)
			if err != nil {
				s.log.Error("Failed to insert analytics records",
					infralogger.String("table", table),
					infralogger.Int("batch_size", len(chunk)),
					infralogger.Error(err),
				)
			}
			if s.onFlush != nil {
				s.onFlush(table, len(chunk), err)
			}
		}
	}

	s.log.Debug("Flushed analytics records", infralogger.Int("total", len(batch)))
}

// batchInsert writes records of a single table with one INSERT.
func (s *Store) batchInsert(ctx context.Context, records []domain.Record) error {
	if len(records) == 0 {
		return nil
	}

	columns := records[0].Columns()
	args := make([]any, 0, len(records)*len(columns))
	for _, rec := range records {
		args = append(args, rec.Values()...)
	}

	query := sink.InsertStatement(records[0].Table(), columns, len(records))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec batch insert: %w", err)
	}
	return nil
}
