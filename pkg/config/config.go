package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel          string   // sets the log level (zap log level values)
	LogFormat         string   // text vs json
	LogFilter         string   // zapfilter rules, e.g. "debug+:session* info+:*"
	LogConfig         string   // path to log config file
	WaitForServices   string   // duration to wait for other services to be ready
	EnableTelemetry   bool     // enable telemetry
	TelemetryEndpoint string   // endpoint for telemetry, "stdout" prints to console
	NatsURL           string   // NATS server URL, empty disables publishing
	NatsSubject       string   // subject prefix for published messages
	TickRate          string   // duration between two ticks of the run command
	Cars              int      // number of cars per track
	Ticks             int      // number of ticks of the sim command
	Seed              uint64   // seed for driver speeds
	MinSpeed          float64  // min distance a driver moves per tick
	MaxSpeed          float64  // max distance a driver moves per tick
	MaxSteps          int      // steps after which drivers are disabled, 0 means no limit
	Tracks            []string // tracks to use, empty means all tracks of the file
)
