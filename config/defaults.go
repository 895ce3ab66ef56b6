package config

const (
	// DefaultConfigFileName is the rc file looked up in the home directory.
	DefaultConfigFileName = ".couchrc"

	// RCSection is the rc file section holding the endpoints.
	RCSection = "replication"
	// RCSourceKey is the source endpoint key in [RCSection].
	RCSourceKey = "SOURCE"
	// RCDestinationKey is the destination endpoint key in [RCSection].
	RCDestinationKey = "DESTINATION"

	DefaultLogLevel             = "info"
	DefaultNumParallelDatabases = 4
	DefaultRequestRetries       = 3
)
