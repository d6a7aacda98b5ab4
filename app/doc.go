/*
Package app glues the escrow and cash modules to the ordering layer.

A Guardian applies ordered batches of transactions to its store. Each
transaction is a set of module inputs and outputs that must balance and that
is signed by every key its inputs name. A Sequencer orders submitted
transactions into batches and a LocalFederation runs several guardians side
by side, checking that they all reach the same verdicts.
*/
package app
