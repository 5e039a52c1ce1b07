package medbridge

import (
	"rehabgo/lib/restyutil"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("scrapers/medbridge")

var restyInstrumentOutput restyutil.InstrumentOutput

// SetRestyInstrumentOutput enables raw http dumps for every client created
// afterwards.
func SetRestyInstrumentOutput(output restyutil.InstrumentOutput) {
	restyInstrumentOutput = output
}
