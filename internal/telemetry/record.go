package telemetry

import "time"

// Record is a fully decoded GPS telemetry message. It is built once per
// inbound message and never mutated afterwards, so it may be shared freely
// across goroutines.
type Record struct {
	Device  Device     `json:"device"`
	Network Network    `json:"network"`
	Gsm     []GsmInfo  `json:"gsm"`
	Sims    []SimInfo  `json:"sims"`
	Gps     Fix        `json:"gps"`
	Events  []Event    `json:"events"`
	Sensors []Sensor   `json:"sensors"`
	ObdPids []ObdPid   `json:"obd_pids"`
	CanBus  []CanEntry `json:"can_bus"`
}

// IdentKind tells which identifier the device reports itself by.
type IdentKind string

const (
	IdentIMEI     IdentKind = "imei"
	IdentSerialNo IdentKind = "serial_no"
)

type Device struct {
	IdentType IdentKind `json:"ident_type"`
	IMEI      *string   `json:"imei"`
	SerialNo  *string   `json:"serial_no"`
	Firmware  *string   `json:"firmware"`
	Type      *string   `json:"type"`
	Model     *string   `json:"model"`
}

// Identity returns the device's preferred identifier, falling back to
// whichever of imei/serial_no is present.
func (d Device) Identity() string {
	switch {
	case d.IdentType == IdentSerialNo && d.SerialNo != nil:
		return *d.SerialNo
	case d.IMEI != nil:
		return *d.IMEI
	case d.SerialNo != nil:
		return *d.SerialNo
	}
	return ""
}

type Network struct {
	IP         *string `json:"ip"`
	IPv6       *string `json:"ipv6"`
	RemotePort *int    `json:"remote_port"`
	MAC        *string `json:"mac"`
}

// DataMode is the cellular data bearer reported by the modem.
type DataMode string

const (
	DataModeNone DataMode = "none"
	DataMode2G   DataMode = "2g"
	DataMode3G   DataMode = "3g"
	DataModeLTE  DataMode = "lte"
)

type GsmInfo struct {
	Cid       []int64  `json:"cid"`
	Lcid      []int64  `json:"lcid"`
	Lac       []int64  `json:"lac"`
	Carrier   *string  `json:"carrier"`
	Rssi      []int64  `json:"rssi"`
	Rcpi      []int64  `json:"rcpi"`
	Mcc       []string `json:"mcc"`
	Mnc       []string `json:"mnc"`
	SignalStr *int     `json:"signal_str"`
	DataMode  DataMode `json:"data_mode"`
	Status    []string `json:"status"`
}

type SimInfo struct {
	Msisdn *string `json:"msisdn"`
	Iccid  *string `json:"iccid"`
	Imsi   *string `json:"imsi"`
}

// Activity is the motion state estimated by the device.
type Activity string

const (
	ActivityUnknown Activity = "unknown"
	ActivityStill   Activity = "still"
	ActivityWalking Activity = "walking"
	ActivityDriving Activity = "driving"
)

// Fix is a single positional reading. A nil Timestamp means the device had
// no time sync when the fix was taken — it is not epoch zero.
type Fix struct {
	Timestamp  *time.Time `json:"-"`
	Latitude   float64    `json:"latitude"`
	Longitude  float64    `json:"longitude"`
	Altitude   float64    `json:"altitude"`
	Speed      float64    `json:"speed"`
	Heading    float64    `json:"heading"`
	Satellites int        `json:"satellites"`
	Activity   Activity   `json:"activity"`
	Odometer   *int64     `json:"odometer"`
	TripOdo    *int64     `json:"trip_odo"`
	Pdop       *float64   `json:"pdop"`
	Hdop       *float64   `json:"hdop"`
	Vdop       *float64   `json:"vdop"`
	Tdop       *float64   `json:"tdop"`
	Flags      []string   `json:"flags"`
}

// HasFlag reports whether the fix carries the given status flag.
func (f Fix) HasFlag(flag string) bool {
	for _, s := range f.Flags {
		if s == flag {
			return true
		}
	}
	return false
}

// Event is one entry of the events list: a code plus zero or more ordered
// key/value pairs, e.g. ["HARSH_DRIVING:BRAKING", ["x", -0.45], ["y", 0.003]].
type Event struct {
	Code  string
	Pairs []Pair
}

type Pair struct {
	Key   string
	Value Value
}

// Sensor is one entry of the sensors list: a named reading whose value keeps
// whatever JSON kind the device sent (string, number, boolean or null).
type Sensor struct {
	Name  string
	Value Value
}

type ObdPid struct {
	Pid   int64
	Value int64
}

type CanEntry struct {
	ID    int64
	Value int64
}
