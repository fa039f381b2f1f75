// Package prompt turns modal dialogs into awaitable results.
//
// Each call to Notice, Confirm or Text builds a fresh session, presents one
// surface on a Host and returns immediately. Await blocks until the session
// resolves. The surface is always dismissed before the result is released.
//
// A rejected text submission keeps the dialog open and hands the rejected value
// to the feedback handler. Feedback runs on the host's event loop, so it must not
// block: open nested prompts freely, but await them from another goroutine.
package prompt
