package catalogue_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/okian/pedalrank/internal/domain/catalogue"
	"github.com/okian/pedalrank/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestNormalise(t *testing.T) {
	Convey("Given a complete record", t, func() {
		p := catalogue.Normalise(catalogue.Raw{Name: "Phase 90", Brand: "MXR", Filename: "mxr-phase-90"})

		Convey("Then the id is built from brand, name and filename", func() {
			So(p.ID, ShouldEqual, "mxr__phase-90__mxr-phase-90")
			So(p.Name, ShouldEqual, "Phase 90")
			So(p.Brand, ShouldEqual, "MXR")
			So(p.Image, ShouldEqual, catalogue.ImageBase+"mxr-phase-90.png")
		})
	})

	Convey("Given a record without filename", t, func() {
		p := catalogue.Normalise(catalogue.Raw{Name: "Big Muff Pi", Brand: "Electro-Harmonix"})

		Convey("Then the filename is derived", func() {
			So(p.Filename, ShouldEqual, "electro-harmonix-big-muff-pi")
			So(p.ID, ShouldEqual, "electro-harmonix__big-muff-pi__electro-harmonix-big-muff-pi")
		})
	})

	Convey("Given a record with only a manufacturer and filename", t, func() {
		p := catalogue.Normalise(catalogue.Raw{Manufacturer: "Walrus Audio", Filename: "walrus-julia"})

		Convey("Then brand and name fall back", func() {
			So(p.Brand, ShouldEqual, "Walrus Audio")
			So(p.Name, ShouldEqual, "walrus-julia")
			So(p.ID, ShouldEqual, "____walrus-julia")
		})
	})

	Convey("Given a record with neither brand nor manufacturer", t, func() {
		p := catalogue.Normalise(catalogue.Raw{Name: "Mystery Fuzz"})
		So(p.Brand, ShouldEqual, "Unknown")
		So(p.Filename, ShouldEqual, "unknown-mystery-fuzz")
	})
}

func TestParse(t *testing.T) {
	Convey("Given an array listing", t, func() {
		data := []byte(`[
			{"name": "Phase 90", "brand": "MXR", "filename": "mxr-phase-90", "width": 2.6, "height": "4.4"},
			{"name": "Phase 90", "brand": "MXR", "filename": "mxr-phase-90"},
			{"brand": "Nobody"},
			42,
			{"name": "DS-1", "brand": "Boss"}
		]`)

		Convey("When parsed", func() {
			pedals, err := catalogue.Parse(data)

			Convey("Then unusable records and duplicates are dropped", func() {
				So(err, ShouldBeNil)
				So(pedals, ShouldHaveLength, 2)
				So(pedals[0].Width, ShouldEqual, 2.6)
				So(pedals[0].Height, ShouldEqual, 4.4)
				So(pedals[1].Brand, ShouldEqual, "Boss")
			})
		})
	})

	Convey("Given an object listing", t, func() {
		data := []byte(`{"b": {"name": "Tumnus", "brand": "Wampler"}, "a": {"name": "OCD", "brand": "Fulltone"}}`)

		Convey("When parsed", func() {
			pedals, err := catalogue.Parse(data)

			Convey("Then values keep document order", func() {
				So(err, ShouldBeNil)
				So(pedals, ShouldHaveLength, 2)
				So(pedals[0].Name, ShouldEqual, "Tumnus")
				So(pedals[1].Name, ShouldEqual, "OCD")
			})
		})
	})

	Convey("Given listings in different orders", t, func() {
		a, errA := catalogue.Parse([]byte(`[{"name":"A","brand":"X"},{"name":"B","brand":"Y"}]`))
		b, errB := catalogue.Parse([]byte(`[{"name":"B","brand":"Y"},{"name":"A","brand":"X"}]`))

		Convey("Then ids are the same", func() {
			So(errA, ShouldBeNil)
			So(errB, ShouldBeNil)
			So(a[0].ID, ShouldEqual, b[1].ID)
			So(a[1].ID, ShouldEqual, b[0].ID)
		})
	})

	Convey("Given unusable input", t, func() {
		_, err := catalogue.Parse([]byte(`   `))
		So(errors.Is(err, catalogue.ErrEmpty), ShouldBeTrue)

		_, err = catalogue.Parse([]byte(`[]`))
		So(errors.Is(err, catalogue.ErrEmpty), ShouldBeTrue)

		_, err = catalogue.Parse([]byte(`"pedals"`))
		So(err, ShouldNotBeNil)

		_, err = catalogue.Parse([]byte(`[{"name": "x"`))
		So(err, ShouldNotBeNil)
	})
}

func TestStarter(t *testing.T) {
	Convey("Given the built-in starter list", t, func() {
		pedals, err := catalogue.Starter()

		Convey("Then it holds twenty distinct pedals", func() {
			So(err, ShouldBeNil)
			So(pedals, ShouldHaveLength, 20)
			ids := map[string]bool{}
			for _, p := range pedals {
				ids[p.ID] = true
			}
			So(ids, ShouldHaveLength, 20)
			So(pedals[0].ID, ShouldEqual, "boss__ds-1-distortion__boss-ds-1")
		})
	})
}

func TestLoader(t *testing.T) {
	ctx := context.Background()
	quiet := catalogue.WithLogger(logger.Nop())

	Convey("Given a readable local file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "pedals.json")
		So(os.WriteFile(path, []byte(`[{"name":"Timeline","brand":"Strymon"}]`), 0o600), ShouldBeNil)

		Convey("When loading", func() {
			l := catalogue.NewLoader(quiet, catalogue.WithFile(path), catalogue.WithURL(""))
			pedals, src, err := l.Load(ctx)

			Convey("Then the file wins", func() {
				So(err, ShouldBeNil)
				So(src, ShouldEqual, catalogue.SourceFile)
				So(pedals, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a missing file and a working remote", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"x": {"name":"BigSky","brand":"Strymon"}, "y": {"name":"Timeline","brand":"Strymon"}}`))
		}))
		defer srv.Close()

		Convey("When loading", func() {
			l := catalogue.NewLoader(quiet,
				catalogue.WithFile(filepath.Join(t.TempDir(), "missing.json")),
				catalogue.WithURL(srv.URL),
				catalogue.WithHTTPClient(srv.Client()),
			)
			pedals, src, err := l.Load(ctx)

			Convey("Then the remote listing is used", func() {
				So(err, ShouldBeNil)
				So(src, ShouldEqual, catalogue.SourceRemote)
				So(pedals, ShouldHaveLength, 2)
			})
		})
	})

	Convey("Given a failing remote", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer srv.Close()
		l := catalogue.NewLoader(quiet, catalogue.WithURL(srv.URL))

		Convey("When fetching directly", func() {
			_, err := l.Fetch(ctx)
			So(errors.Is(err, catalogue.ErrHTTPStatus), ShouldBeTrue)
		})

		Convey("When loading", func() {
			pedals, src, err := l.Load(ctx)

			Convey("Then the starter list is used", func() {
				So(err, ShouldBeNil)
				So(src, ShouldEqual, catalogue.SourceStarter)
				So(pedals, ShouldHaveLength, 20)
			})
		})
	})

	Convey("Given a slow remote", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		}))
		defer srv.Close()

		Convey("When the timeout expires", func() {
			l := catalogue.NewLoader(quiet, catalogue.WithURL(srv.URL), catalogue.WithTimeout(50*time.Millisecond))
			_, src, err := l.Load(ctx)

			Convey("Then loading still succeeds from the starter list", func() {
				So(err, ShouldBeNil)
				So(src, ShouldEqual, catalogue.SourceStarter)
			})
		})
	})

	Convey("Given no remote URL", t, func() {
		l := catalogue.NewLoader(quiet, catalogue.WithURL(""))
		_, err := l.Fetch(ctx)
		So(errors.Is(err, catalogue.ErrNoSource), ShouldBeTrue)
	})
}
