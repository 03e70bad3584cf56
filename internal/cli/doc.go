// Package cli implements the bealink command-line interface.
//
// Each command is a package-level cobra.Command registered in an init
// function. Commands that touch devices call openApp, which loads config,
// opens the device database and wires the coordinator with the mDNS
// resolver, the agent HTTP client and the Wake-on-LAN sender. The caller
// must Close the App to stop background work.
//
// # Command Structure
//
//	bealink device add|edit|rm|list   manage the device list
//	bealink status                    resolve and probe every device once
//	bealink watch                     live dashboard
//	bealink wake|sleep|shutdown|display <device>
//	bealink clip push|pull <device>   clipboard relay
//	bealink resolve <hostname>        one mDNS lookup
//	bealink discover                  list agents on the LAN
//	bealink config init|set|show|path
//
// # Flag Handling
//
// Global flags (--config, --verbose, --no-color) are defined on the root
// command. Devices are named by id, id prefix or display name; see
// device.Match.
//
// Progress spinners write to stderr so stdout stays clean when piped, and
// --json output on status and device list uses JSONEnvelope.
package cli
