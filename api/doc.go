/*
Package api serves the guardian over HTTP.

	POST /tx              {"tx": "<hex encoded transaction>"} -> {"tx_id": "..."}
	GET  /tx/{id}         transaction status
	GET  /escrow/{id}     public view of an escrow
	GET  /balance/{key}   cash balance of a key (bech32 or hex)
	GET  /config          escrow consensus configuration
	GET  /healthz         height of the last applied batch
	GET  /metrics         prometheus metrics

All failures are returned as {"error": "...", "code": N} where code is the
registered error code, so that a client can rebuild the error with
errors.FromCode.
*/
package api
