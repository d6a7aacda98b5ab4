/*
Package cash is a minimal stand-in for federation issued e-cash.

Balances are kept per public key. A cash input burns value from the owner's
balance, which the owner authorizes by signing the transaction, and a cash
output mints value to a key. The transaction balancing rule guarantees that
no value is created or destroyed overall.
*/
package cash
