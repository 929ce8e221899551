/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package thumbs

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"mangashelf/internal/archive"
	applog "mangashelf/internal/log"
)

// Loader returns the cover image bytes of the book identified by key.
type Loader func(ctx context.Context, key string) ([]byte, error)

// Result is one finished request. Data is a JPEG thumbnail when Err is nil.
type Result struct {
	Serial uint64
	Key    string
	Data   []byte
	Cached bool
	Err    error
}

// Options tunes a Filler.
type Options struct {
	Width   int
	Workers int
	// Queue bounds the pending requests; Request fails fast when it is full.
	Queue  int
	Cache  Cache
	Loader Loader
	Logger *slog.Logger
}

type job struct {
	serial  uint64
	key     string
	deliver func(Result)
}

// Filler is a bounded worker pool producing thumbnails for realized slots.
// Deliver callbacks run on worker goroutines; hosts hand results back to
// their UI goroutine and drop those whose serial is no longer live.
type Filler struct {
	opts   Options
	log    *slog.Logger
	jobs   chan job
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	pending map[uint64]bool
	closed  bool
}

// NewFiller starts the workers. Close stops them.
func NewFiller(opts Options) *Filler {
	if opts.Width <= 0 {
		opts.Width = DefaultWidth
	}
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Queue <= 0 {
		opts.Queue = opts.Workers * 64
	}
	if opts.Loader == nil {
		opts.Loader = CoverLoader(opts.Width)
	}
	l := opts.Logger
	if l == nil {
		l = applog.WithComponent("thumbs")
	}
	ctx, cancel := context.WithCancel(context.Background())
	f := &Filler{
		opts:    opts,
		log:     l,
		jobs:    make(chan job, opts.Queue),
		ctx:     ctx,
		cancel:  cancel,
		pending: map[uint64]bool{},
	}
	for range opts.Workers {
		f.wg.Add(1)
		go f.work()
	}
	return f
}

// Width returns the thumbnail width produced by the filler.
func (f *Filler) Width() int { return f.opts.Width }

// Request queues a thumbnail for key on behalf of the slot with serial. It
// never blocks and returns false when the queue is full or the filler closed.
func (f *Filler) Request(serial uint64, key string, deliver func(Result)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	select {
	case f.jobs <- job{serial: serial, key: key, deliver: deliver}:
		f.pending[serial] = true
		return true
	default:
		return false
	}
}

// Cancel drops the queued request of serial, if it has not started.
func (f *Filler) Cancel(serial uint64) {
	f.mu.Lock()
	delete(f.pending, serial)
	f.mu.Unlock()
}

// take claims a queued job. Duplicate requests for one serial run once.
func (f *Filler) take(serial uint64) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.pending[serial] {
		return false
	}
	delete(f.pending, serial)
	return true
}

// Pending returns the number of queued requests not yet started.
func (f *Filler) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// Close stops the workers and waits for in-flight requests. Queued requests
// are dropped without delivery.
func (f *Filler) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	close(f.jobs)
	f.mu.Unlock()
	f.cancel()
	f.wg.Wait()
}

func (f *Filler) work() {
	defer f.wg.Done()
	for j := range f.jobs {
		if f.ctx.Err() != nil || !f.take(j.serial) {
			continue
		}
		res := f.produce(j)
		if f.ctx.Err() != nil {
			continue
		}
		if res.Err != nil {
			f.log.Debug("thumbnail failed", slog.String("key", j.key), slog.Any("err", res.Err))
		}
		if j.deliver != nil {
			j.deliver(res)
		}
	}
}

func (f *Filler) produce(j job) Result {
	res := Result{Serial: j.serial, Key: j.key}
	w := f.opts.Width
	if f.opts.Cache != nil {
		b, err := f.opts.Cache.GetPreview(f.ctx, j.key, w)
		if err != nil {
			f.log.Warn("thumbnail cache read failed", slog.String("key", j.key), slog.Any("err", err))
		} else if b != nil {
			res.Data, res.Cached = b, true
			return res
		}
	}
	raw, err := f.opts.Loader(f.ctx, j.key)
	if err != nil {
		res.Err = err
		return res
	}
	data, err := Generate(raw, w)
	if err != nil {
		res.Err = err
		return res
	}
	res.Data = data
	if f.opts.Cache != nil {
		if err := f.opts.Cache.PutPreview(f.ctx, j.key, w, data); err != nil {
			f.log.Warn("thumbnail cache write failed", slog.String("key", j.key), slog.Any("err", err))
		}
	}
	return res
}

// CoverLoader reads the first page of the book at the key path. Books whose
// pages cannot be read (PDF, EPUB without images, empty archives) get a
// placeholder of width instead of an error.
func CoverLoader(width int) Loader {
	return func(_ context.Context, key string) ([]byte, error) {
		data, _, err := archive.Cover(key)
		if errors.Is(err, archive.ErrUnsupportedFormat) || errors.Is(err, archive.ErrNoPages) {
			return Placeholder(width), nil
		}
		return data, err
	}
}
