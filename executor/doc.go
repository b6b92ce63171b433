// Package executor runs one request through the shared runner under a
// deadline and assembles the response text from the event stream.
//
// Events are classified into a closed set of shapes (see Classify) and the
// text of each is accumulated. When the deadline passes first the caller
// gets the partial text plus a profile specific notice while the run keeps
// draining in the background.
package executor
