// Package engine is the composition root that assembles the runtime from
// configuration: the OSC transport, the definition watcher, the script host,
// the log router, and the Router loop that coordinates them. Frontends (the
// CLI and its terminal viewer) drive an Engine through Reload, Exit and Send
// and observe it through an EventBus and the log router's sinks.
package engine
