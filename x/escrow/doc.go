/*
Package escrow implements a three-party escrow between a buyer, a seller and
an arbiter.

A buyer locks value by creating an escrow output. The seller claims it by
revealing the secret code whose sha256 hash was committed at creation. Either
party may instead raise a dispute, in which case the arbiter decides who
receives the value and takes a fee capped at creation time. The winner then
claims the remaining amount.

Every instruction is processed by Handler, which is a pure function of the
store, the instruction and the configuration, so that every guardian reaches
the same verdict.
*/
package escrow
