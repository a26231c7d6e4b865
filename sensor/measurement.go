package sensor

// A Measurement pairs a Reading with the name of the sensor that
// produced it. It exists for delivery callbacks that want a
// self-describing value; the hot sampling path passes bare Reading
// slices instead, since building a Measurement costs one allocation per
// sample.
type Measurement struct {
	Sensor string
	Reading
}
