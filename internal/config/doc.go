// Package config loads scriptstorm settings.
//
// Settings come from three layers, later layers overriding earlier ones:
//
//  1. built-in defaults (Default)
//  2. a TOML or YAML file chosen by extension
//  3. SCRIPTSTORM_* environment variables
//
// Settings use dotted paths such as pagination.pageCapacity. A Reloader
// watches the file and swaps in a new validated Config on change; invalid
// edits are logged and the previous Config stays in effect.
//
// Example file (TOML):
//
//	[pagination]
//	pageCapacity = 864
//	resizeDebounce = "100ms"
//
//	[editor]
//	formatCycle = ["header", "action", "speaker", "dialog", "directions"]
//	stalePolicy = "accept"
package config
