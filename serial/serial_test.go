package serial

import (
	"testing"

	ser "go.bug.st/serial"
	"go.viam.com/test"
)

func TestParseParity(t *testing.T) {
	for in, want := range map[string]Parity{"": NoParity, "none": NoParity, "odd": OddParity, "E": EvenParity, "mark": MarkParity, "space": SpaceParity} {
		got, err := ParseParity(in)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, got, test.ShouldEqual, want)
	}
	_, err := ParseParity("sideways")
	test.That(t, err, test.ShouldNotBeNil)
}

func TestMode(t *testing.T) {
	o := DefaultOptions()
	o.Parity = EvenParity
	o.StopBits = TwoStopBits
	m := o.mode()
	test.That(t, m.BaudRate, test.ShouldEqual, 115200)
	test.That(t, m.DataBits, test.ShouldEqual, 8)
	test.That(t, m.Parity, test.ShouldEqual, ser.EvenParity)
	test.That(t, m.StopBits, test.ShouldEqual, ser.TwoStopBits)

	test.That(t, Options{BaudRate: 9600}.mode().DataBits, test.ShouldEqual, 8)
}

func TestOpenMissingDevice(t *testing.T) {
	_, err := Open("/dev/does-not-exist-tracker", DefaultOptions())
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "does-not-exist-tracker")
}
