package dedupe_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/okian/pedalrank/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestWindow(t *testing.T) {
	Convey("Given a new Window", t, func() {
		Convey("When created with default options", func() {
			w := dedupe.NewWindow()

			Convey("Then it is empty with the default capacity", func() {
				So(w.Len(), ShouldEqual, 0)
				So(w.Capacity(), ShouldEqual, dedupe.DefaultCapacity)
				So(w.IDs(), ShouldBeEmpty)
			})
		})

		Convey("When created with a non-positive capacity", func() {
			w := dedupe.NewWindow(dedupe.WithCapacity(0))

			Convey("Then it holds a single id", func() {
				So(w.Capacity(), ShouldEqual, 1)
				w.Add("a", "b")
				So(w.IDs(), ShouldResemble, []string{"b"})
			})
		})

		Convey("When more ids are added than it holds", func() {
			w := dedupe.NewWindow(dedupe.WithCapacity(3))
			w.Add("a", "b", "c", "d")

			Convey("Then the oldest is evicted", func() {
				So(w.Len(), ShouldEqual, 3)
				So(w.Contains("a"), ShouldBeFalse)
				So(w.IDs(), ShouldResemble, []string{"b", "c", "d"})
			})
		})

		Convey("When an existing id is added again", func() {
			w := dedupe.NewWindow(dedupe.WithCapacity(3))
			w.Add("a", "b", "c")
			w.Add("a")

			Convey("Then its position is unchanged", func() {
				So(w.IDs(), ShouldResemble, []string{"a", "b", "c"})
			})

			Convey("And it is still evicted first", func() {
				w.Add("d")
				So(w.Contains("a"), ShouldBeFalse)
				So(w.IDs(), ShouldResemble, []string{"b", "c", "d"})
			})
		})

		Convey("When reset", func() {
			w := dedupe.NewWindow()
			w.Add("a", "b")
			w.Reset()

			Convey("Then it is empty and usable", func() {
				So(w.Len(), ShouldEqual, 0)
				So(w.Contains("a"), ShouldBeFalse)
				w.Add("c")
				So(w.IDs(), ShouldResemble, []string{"c"})
			})
		})
	})
}

func TestWindowDeduper(t *testing.T) {
	Convey("Given a Window used as a Deduper", t, func() {
		var d dedupe.Deduper = dedupe.NewWindow(dedupe.WithCapacity(2))
		ctx := context.Background()

		Convey("When an id is recorded twice", func() {
			first := d.SeenAndRecord(ctx, "m-1")
			second := d.SeenAndRecord(ctx, "m-1")

			Convey("Then only the second call reports it as seen", func() {
				So(first, ShouldBeFalse)
				So(second, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When the window overflows", func() {
			d.SeenAndRecord(ctx, "m-1")
			d.SeenAndRecord(ctx, "m-2")
			d.SeenAndRecord(ctx, "m-3")

			Convey("Then the oldest id is forgotten", func() {
				So(d.Size(), ShouldEqual, 2)
				So(d.SeenAndRecord(ctx, "m-1"), ShouldBeFalse)
			})
		})
	})
}

func TestWindowConcurrency(t *testing.T) {
	Convey("Given many goroutines recording the same ids", t, func() {
		w := dedupe.NewWindow(dedupe.WithCapacity(1000))
		ctx := context.Background()
		var (
			wg    sync.WaitGroup
			mu    sync.Mutex
			fresh int
		)

		for g := 0; g < 10; g++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if !w.SeenAndRecord(ctx, fmt.Sprintf("id-%d", i)) {
						mu.Lock()
						fresh++
						mu.Unlock()
					}
				}
			}()
		}
		wg.Wait()

		Convey("Then each id is fresh exactly once", func() {
			So(fresh, ShouldEqual, 100)
			So(w.Len(), ShouldEqual, 100)
		})
	})
}
