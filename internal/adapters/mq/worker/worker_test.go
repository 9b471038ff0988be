package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	queue "github.com/okian/qualtrack/internal/adapters/mq/queue"
	worker "github.com/okian/qualtrack/internal/adapters/mq/worker"
	model "github.com/okian/qualtrack/internal/domain/model"
	logging "github.com/okian/qualtrack/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type recorder struct {
	mu   sync.Mutex
	seen []string
	fail map[string]error
	done chan struct{}
	want int
}

func newRecorder(want int) *recorder {
	return &recorder{fail: map[string]error{}, done: make(chan struct{}), want: want}
}

func (r *recorder) Refresh(_ context.Context, j queue.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seen = append(r.seen, j.ID)
	if len(r.seen) == r.want {
		close(r.done)
	}
	return r.fail[j.ID]
}

func (r *recorder) ids() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.seen...)
}

func segmentJob(id string) queue.Job {
	return queue.Job{ID: id, Segment: model.Segment{Event: "200 IM", AgeGroup: "15", Sex: "M"}}
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over an in-memory queue", t, func() {
		convey.So(logging.InitWithWriter(&discard{}), convey.ShouldBeNil)
		ctx := context.Background()
		q := queue.NewInMemoryQueue(queue.WithCapacity(8))
		rec := newRecorder(3)
		rec.fail["j2"] = errors.New("upstream down")

		pool := worker.NewPool(2, q, rec)
		convey.So(pool.Size(), convey.ShouldEqual, 2)
		pool.Start(ctx)

		convey.Convey("When jobs are queued, including one that fails", func() {
			for _, id := range []string{"j1", "j2", "j3"} {
				convey.So(q.Enqueue(ctx, segmentJob(id)), convey.ShouldBeNil)
			}

			convey.Convey("Then every job reaches the handler", func() {
				select {
				case <-rec.done:
				case <-time.After(2 * time.Second):
				}
				convey.So(rec.ids(), convey.ShouldHaveLength, 3)
				convey.So(rec.ids(), convey.ShouldContain, "j2")
				pool.UpdateMetrics()
				convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the pool shuts down idle", func() {
			convey.So(pool.Shutdown(ctx), convey.ShouldBeNil)
			convey.So(pool.Active(), convey.ShouldEqual, 0)
		})
	})

	convey.Convey("Given a single worker", t, func() {
		convey.So(logging.InitWithWriter(&discard{}), convey.ShouldBeNil)
		q := queue.NewInMemoryQueue()
		calls := 0
		w := worker.NewInMemoryWorker(q, worker.HandlerFunc(func(context.Context, queue.Job) error {
			calls++
			return nil
		}), worker.WithName("solo"), worker.WithLogger(logging.Nop()))

		ctx, cancel := context.WithCancel(context.Background())
		go w.Run(ctx)

		convey.Convey("When shut down", func() {
			convey.So(w.Shutdown(context.Background()), convey.ShouldBeNil)
			cancel()
			convey.So(calls, convey.ShouldEqual, 0)
		})
	})
}

type discard struct{}

func (*discard) Write(p []byte) (int, error) { return len(p), nil }
