// Package ui renders bealink's terminal output.
//
// One-shot commands print with the helpers here: RenderDeviceTable for
// `bealink status`, RenderInstanceTable for `bealink discover`, and a
// Spinner while a command waits on the network. Styling goes through
// Lip Gloss so DisableColors (the --no-color flag) turns everything
// monochrome in one place.
//
// # Colors and Symbols
//
//	ColorSuccess  online, command sent
//	ColorError    failures, offline devices, slow latency
//	ColorWarning  sluggish latency, confirmations
//	ColorInfo     resolving or a command in flight
//	ColorMuted    secondary text, timing info
//
//	SymbolComplete  online
//	SymbolOffline   offline
//	SymbolPending   not probed yet
//	SymbolProgress  resolving
//
// # Spinner Usage
//
//	s := ui.NewSpinner(os.Stderr, "Waking office-pc", isTerminal)
//	s.Start()
//	// ... do work ...
//	s.Success("Magic packet sent") // or s.Fail(msg)
//
// When animate is false only the final line is written, which keeps piped
// output clean.
//
// # Watch Dashboard
//
// WatchModel is a Bubble Tea model over a Controller (the coordinator). It
// redraws on every state change, keeps a LatencyHistory per device for the
// sparkline column, and lists the most recent notices under the table.
package ui
