package queue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/okian/juryline/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func msg(id string) Message {
	return Message{Key: id, Review: model.Review{ID: id, SubmissionID: "s", JudgeID: "j"}}
}

func TestInMemoryQueue(t *testing.T) {
	Convey("Given a queue with capacity 2", t, func() {
		ctx := context.Background()
		q := NewInMemoryQueue(WithCapacity(2))

		Convey("When messages are enqueued up to capacity", func() {
			So(q.Enqueue(ctx, msg("r1")), ShouldBeTrue)
			So(q.Enqueue(ctx, msg("r2")), ShouldBeTrue)

			Convey("Then the next one is refused", func() {
				So(q.Enqueue(ctx, msg("r3")), ShouldBeFalse)
				So(q.Len(ctx), ShouldEqual, 2)
				So(q.Capacity(), ShouldEqual, 2)
			})

			Convey("Then they are dequeued in order with a timestamp", func() {
				ch := q.Dequeue(ctx)
				first := <-ch
				second := <-ch
				So(first.Review.ID, ShouldEqual, "r1")
				So(second.Review.ID, ShouldEqual, "r2")
				So(first.EnqueuedAt.IsZero(), ShouldBeFalse)
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			So(q.Enqueue(cctx, msg("r1")), ShouldBeFalse)
		})

		Convey("When the queue is closed", func() {
			So(q.Enqueue(ctx, msg("r1")), ShouldBeTrue)
			So(q.Close(), ShouldBeNil)
			So(q.Close(), ShouldBeNil)

			Convey("Then enqueue fails but buffered messages drain", func() {
				So(q.IsClosed(), ShouldBeTrue)
				So(q.Enqueue(ctx, msg("r2")), ShouldBeFalse)

				var got []string
				for m := range q.Dequeue(ctx) {
					got = append(got, m.Review.ID)
				}
				So(got, ShouldResemble, []string{"r1"})
			})
		})
	})
}

func TestInMemoryQueue_Concurrent(t *testing.T) {
	Convey("Given producers and one consumer", t, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q := NewInMemoryQueue(WithCapacity(1000))

		var wg sync.WaitGroup
		for p := 0; p < 4; p++ {
			wg.Add(1)
			go func(p int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					q.Enqueue(ctx, msg(fmt.Sprintf("p%d-%d", p, i)))
				}
			}(p)
		}
		wg.Wait()
		So(q.Close(), ShouldBeNil)

		Convey("Then every message is delivered once", func() {
			seen := map[string]bool{}
			for m := range q.Dequeue(ctx) {
				So(seen[m.Key], ShouldBeFalse)
				seen[m.Key] = true
			}
			So(len(seen), ShouldEqual, 400)
		})
	})
}
