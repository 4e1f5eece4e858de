package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	Convey("Given the global logger", t, func() {
		Convey("When it is initialized with defaults", func() {
			So(Init(), ShouldBeNil)

			Convey("Then Get returns a usable logger", func() {
				l := Get()
				So(l, ShouldNotBeNil)
				So(func() { l.Info(context.Background(), "hello", String("k", "v")) }, ShouldNotPanic)
				So(Sync(), ShouldBeNil)
			})
		})
	})
}

func TestLoggerJSONFormat(t *testing.T) {
	Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithFormat("json"), WithWriter(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When logging with fields", func() {
			Get().Info(context.Background(), "leaderboard computed",
				String("event_id", "ev-1"),
				Int("entries", 3),
				Bool("cached", false),
				Duration("took", 2*time.Millisecond),
				Error(errors.New("boom")),
			)

			Convey("Then the line is valid JSON carrying the fields and the caller", func() {
				var rec map[string]any
				So(json.Unmarshal(buf.Bytes(), &rec), ShouldBeNil)
				So(rec["msg"], ShouldEqual, "leaderboard computed")
				So(rec["event_id"], ShouldEqual, "ev-1")
				So(rec["entries"], ShouldEqual, float64(3))
				So(rec["cached"], ShouldEqual, false)
				So(rec["source"], ShouldContainSubstring, "logger_test.go")
			})
		})
	})
}

func TestLoggerLevels(t *testing.T) {
	Convey("Given a text logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()
		ctx := context.Background()

		Convey("When the level is warn", func() {
			So(SetLevelString("WARN"), ShouldBeNil)
			Get().Info(ctx, "hidden")
			Get().Warn(ctx, "shown")

			Convey("Then info is filtered out", func() {
				out := buf.String()
				So(out, ShouldNotContainSubstring, "hidden")
				So(out, ShouldContainSubstring, "shown")
			})
		})

		Convey("When the level string is unknown", func() {
			err := SetLevelString("verbose")

			Convey("Then an error is returned", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "verbose")
			})
		})
	})
}

func TestLoggerNamedAndWith(t *testing.T) {
	Convey("Given a text logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		So(Init(WithWriter(&buf)), ShouldBeNil)
		defer func() { _ = Init() }()

		Convey("When using a named logger with bound fields", func() {
			Named("planner").With(String("event_id", "ev-9")).Info(context.Background(), "planned", Int("created", 4))

			Convey("Then the group prefix and bound fields are present", func() {
				line := strings.TrimSpace(buf.String())
				So(line, ShouldContainSubstring, "planner.event_id=ev-9")
				So(line, ShouldContainSubstring, "planner.created=4")
			})
		})
	})
}

func TestNop(t *testing.T) {
	Convey("Given a nop logger", t, func() {
		l := Nop()

		Convey("Then every level is silently accepted", func() {
			ctx := context.Background()
			So(func() {
				l.Debug(ctx, "d")
				l.Info(ctx, "i")
				l.Warn(ctx, "w")
				l.Error(ctx, "e")
				l.Named("x").With(Int("n", 1)).Info(ctx, "named")
			}, ShouldNotPanic)
		})
	})
}
