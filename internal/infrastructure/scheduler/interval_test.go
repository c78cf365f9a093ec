package scheduler

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestParseInterval(t *testing.T) {
	Convey("Given schedule labels", t, func() {
		Convey("Every preset should parse and format back to itself", func() {
			for _, label := range Presets {
				d, err := ParseInterval(label)
				So(err, ShouldBeNil)
				So(FormatInterval(d), ShouldEqual, label)
			}
		})

		Convey("Preset values should match their meaning", func() {
			cases := map[string]time.Duration{
				"None":       0,
				"":           0,
				"1 minute":   time.Minute,
				"15 minutes": 15 * time.Minute,
				"3 hours":    3 * time.Hour,
				"1 day":      24 * time.Hour,
				"90m":        90 * time.Minute,
				"2 hrs":      2 * time.Hour,
			}
			for label, want := range cases {
				d, err := ParseInterval(label)
				So(err, ShouldBeNil)
				So(d, ShouldEqual, want)
			}
		})

		Convey("Invalid labels should be rejected", func() {
			for _, label := range []string{"soon", "0 minutes", "-5 minutes", "5 weeks", "30s", "90s", "x hours"} {
				_, err := ParseInterval(label)
				So(err, ShouldNotBeNil)
			}
		})

		Convey("FormatInterval should pick the largest whole unit", func() {
			So(FormatInterval(90*time.Minute), ShouldEqual, "90 minutes")
			So(FormatInterval(48*time.Hour), ShouldEqual, "2 days")
			So(FormatInterval(0), ShouldEqual, NoneLabel)
		})
	})
}

func TestFormatCountdown(t *testing.T) {
	Convey("FormatCountdown", t, func() {
		So(FormatCountdown(0, false), ShouldEqual, "Next backup in: --:--:--")
		So(FormatCountdown(0, true), ShouldEqual, "Next backup in: scheduling...")
		So(FormatCountdown(time.Hour+2*time.Minute+3*time.Second, true), ShouldEqual, "Next backup in: 01:02:03")
		So(FormatCountdown(25*time.Hour, true), ShouldEqual, "Next backup in: 25:00:00")
	})
}
