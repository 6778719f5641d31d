package core

// DebugMode controls whether build errors carry the stack of the failing
// build. Stack capture is skipped when false.
var DebugMode = true

// SetDebugMode enables or disables debug mode for all trees.
func SetDebugMode(debug bool) {
	DebugMode = debug
}
