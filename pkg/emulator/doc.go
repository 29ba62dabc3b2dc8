// Package emulator implements an in-process charging station good enough
// to develop and test against: it answers discovery probes with a firmware
// banner, report requests with canned JSON and mutating commands with the
// usual acknowledgement, reflecting current and energy limits back into
// subsequent reports.
//
// The emulated model is chosen through the product string in the config, so
// tests can stand up a P20 without a meter next to a fully equipped P30.
package emulator
