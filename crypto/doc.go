/*
Package crypto provides the keys used by escrow parties and the federation.

Keys are secp256k1 keys and signatures are BIP-340 Schnorr signatures over
a 32 byte digest. Public keys are stored in their 32 byte x-only form and are
rendered to humans using bech32 with the "fpub" prefix.
*/
package crypto
