package codec

import "math"

const (
	// RecordSize is the number of digit bytes carrying one diameter.
	RecordSize = 5
	// ResponseSize is the size of a full read response (two records, sensor-major).
	ResponseSize = 2 * RecordSize

	// MaxMM is the largest diameter representable on the wire.
	MaxMM float32 = 9.9999

	scale = 10000
)

// Record is one fixed-point diameter D.DDDD as decimal digits, most
// significant first.
type Record [RecordSize]byte

// Response is the buffer sent to the controller on every read request.
type Response [ResponseSize]byte

// Encode clamps mm to [0, MaxMM], rounds half-up to ten-thousandths and
// returns the digit record. NaN encodes as zero.
func Encode(mm float32) Record {
	var r Record
	EncodeInto(r[:], mm)
	return r
}

// EncodeInto writes the record for mm into the first RecordSize bytes of dst.
func EncodeInto(dst []byte, mm float32) {
	_ = dst[RecordSize-1]

	v := float64(mm)
	switch {
	case math.IsNaN(v) || v < 0:
		v = 0
	case v > float64(MaxMM):
		v = float64(MaxMM)
	}

	n := uint32(v*scale + 0.5)
	dst[0] = byte(n / 10000 % 10)
	dst[1] = byte(n / 1000 % 10)
	dst[2] = byte(n / 100 % 10)
	dst[3] = byte(n / 10 % 10)
	dst[4] = byte(n % 10)
}

// Decode reconstructs the diameter the controller reads from r.
func Decode(r Record) float32 {
	return float32(r.Value()) / scale
}

// Value returns the record as an integer number of ten-thousandths.
func (r Record) Value() uint32 {
	return uint32(r[0])*10000 + uint32(r[1])*1000 + uint32(r[2])*100 + uint32(r[3])*10 + uint32(r[4])
}

// Valid reports whether every byte is a decimal digit.
func (r Record) Valid() bool {
	for _, d := range r {
		if d > 9 {
			return false
		}
	}
	return true
}

// BuildResponse encodes both sensor diameters into a response buffer.
func BuildResponse(mm0, mm1 float32) Response {
	var resp Response
	EncodeInto(resp[:RecordSize], mm0)
	EncodeInto(resp[RecordSize:], mm1)
	return resp
}

// Record returns the record for sensor (0 or 1). Other sensors get a zero record.
func (r Response) Record(sensor int) Record {
	var rec Record
	if sensor < 0 || sensor > 1 {
		return rec
	}
	copy(rec[:], r[sensor*RecordSize:])
	return rec
}

// Decode returns both diameters carried by the response.
func (r Response) Decode() (float32, float32) {
	return Decode(r.Record(0)), Decode(r.Record(1))
}
