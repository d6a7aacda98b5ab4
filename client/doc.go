/*
Package client is the submitting side of the escrow module.

A Transport reaches the federation, either in process (app.LocalFederation)
or over HTTP (HTTPTransport). The Tracker turns a signed transaction into an
operation with a short lifecycle: Created, then Accepted or Rejected. The
Wallet earmarks value spent by operations in flight so that concurrent
operations of one key do not overspend. EscrowClient builds on all of them
and exposes one method per escrow action.
*/
package client
