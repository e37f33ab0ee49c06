// Package config loads sandbox settings.
//
// Settings files are YAML or CUE. Either form is unified with the closed
// CUE schema #Settings embedded in this package, which fills defaults and
// rejects unknown fields and out-of-range values before anything is
// decoded into Go.
//
// Example (YAML):
//
//	now: 1700000000
//	verbosity: debug
//	order: random
//	seed: 42
//	network:
//	  gas_price: 2
package config
