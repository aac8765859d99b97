// Package steps implements the steps benchmark sequences are made of and
// builds session scenarios from their configuration.
//
// Steps never block the session's executor. Waiting steps return false
// from Prepare and arrange for Session.Proceed to be called when they can
// continue. Callbacks coming back after the session was restarted are
// recognised by its generation and dropped.
package steps
