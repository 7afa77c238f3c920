package contracts

// Exchanges
const (
	ExchangeLocationFanout = "driver_location_fanout"
)

// Producers
const (
	ProducerDriverAgent = "driver-agent"
)
