package audit

/*
Файл journal.go реализует журнал аутентификации: кто и когда входил,
регистрировался или получал отказ.

- Non-blocking: Log никогда не ждет БД. Запрос на вход не должен
  замедляться из-за записи аудита.
- Batching: события копятся в памяти и пишутся пачкой (Bulk Insert)
  по таймеру или при достижении BatchSize.
- Drain Pattern: Stop закрывает канал, воркер вычитывает остатки и делает
  финальный flush. Потерь при штатной остановке нет.
- Load Shedding: при переполнении буфера событие уходит в zap, а не блокирует вызов.
*/

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Storage определяет, куда физически будут сохраняться события
type Storage interface {
	// WriteBatch сохраняет пачку событий за один раз
	WriteBatch(ctx context.Context, events []AuthEvent) error
}

// Auditor - то, что видят сервисы
type Auditor interface {
	Log(event AuthEvent)
}

// Gauge - заполненность буфера (prometheus.Gauge подходит)
type Gauge interface {
	Set(float64)
}

type Options struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
	BufferGauge   Gauge
}

type Journal struct {
	ch     chan AuthEvent // Буфер для асинхронности
	repo   Storage
	opts   Options
	logger *zap.Logger
	wg     sync.WaitGroup

	// closed защищен mu: отправка в закрытый канал паникует,
	// поэтому Log держит RLock на время select, а Stop берет Lock перед close
	mu     sync.RWMutex
	closed bool
}

func NewJournal(repo Storage, opts Options, logger *zap.Logger) *Journal {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 500 * time.Millisecond
	}
	return &Journal{
		ch:     make(chan AuthEvent, opts.BufferSize),
		repo:   repo,
		opts:   opts,
		logger: logger.With(zap.String("mod", "audit")),
	}
}

func (j *Journal) Start() {
	j.wg.Add(1)
	go j.worker()
}

// Stop «запирает» вход в канал и ждет, пока воркер всё допишет.
func (j *Journal) Stop() {
	j.mu.Lock()
	if j.closed {
		j.mu.Unlock()
		return
	}
	j.closed = true
	close(j.ch) // Новые события больше не принимаются
	j.mu.Unlock()

	j.logger.Info("stopping audit journal: flushing buffer...")
	j.wg.Wait()
	j.logger.Info("audit journal stopped gracefully")
}

func (j *Journal) Log(event AuthEvent) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	// Убеждаемся, что таймстемп всегда проставлен
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	j.mu.RLock()
	defer j.mu.RUnlock()

	if j.closed {
		j.logger.Warn("audit event dropped: journal is stopping", zap.String("id", event.ID))
		return
	}

	select {
	case j.ch <- event:
		j.reportFill()
	default:
		// Backpressure: не теряем факт события, пишем его в лог
		j.logger.Error("audit_buffer_overflow",
			zap.String("type", string(event.Type)),
			zap.String("subject", event.Subject),
			zap.String("request_id", event.RequestID),
		)
	}
}

func (j *Journal) reportFill() {
	if j.opts.BufferGauge != nil {
		j.opts.BufferGauge.Set(float64(len(j.ch)))
	}
}

func (j *Journal) worker() {
	defer j.wg.Done()

	batch := make([]AuthEvent, 0, j.opts.BatchSize)
	ticker := time.NewTicker(j.opts.FlushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Background: контекст запроса к этому моменту давно закрыт
		if err := j.repo.WriteBatch(context.Background(), batch); err != nil {
			j.logger.Error("audit flush failed", zap.Int("events", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
		j.reportFill()
	}

	for {
		select {
		case event, ok := <-j.ch:
			if !ok {
				// Канал закрыт в Stop(): остатки уже вычитаны, финальный сброс
				flush()
				return
			}
			batch = append(batch, event)
			if len(batch) >= j.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
