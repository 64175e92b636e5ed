package msl

import (
	"texbot/lib/restyutil"
	"texbot/lib/telemetry"
)

var tracer = telemetry.Tracer("texbot.services.msl")
var restyInstrumentOutput restyutil.InstrumentOutput

func SetRestyInstrumentOutput(out restyutil.InstrumentOutput) {
	restyInstrumentOutput = out
}
