// Package timeline replays historical snapshots of the agent graph.
//
// A Player loads an ordered snapshot sequence through a Loader and steps
// through it on a timer at one of a fixed set of speeds. While a snapshot
// is shown the display is in playback mode; EnterLiveMode hands the display
// back to live data. A Recorder captures the live graph periodically so
// there is history to load.
package timeline
