package ui

// Unicode symbols for status indicators.
const (
	SymbolSuccess   = "◉" // Command succeeded
	SymbolFail      = "✕" // Command failed
	SymbolPending   = "◇" // Not checked yet
	SymbolProgress  = "◆" // Resolving
	SymbolComplete  = "●" // Online
	SymbolOffline   = "○" // Offline
	SymbolWarning   = "⚠"
	SymbolSelection = "▸"
)
