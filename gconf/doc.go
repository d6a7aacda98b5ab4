/*
Package gconf implements a configuration store intended to be used as a global,
in-database configuration.

Consensus configuration is loaded once from the genesis file and then read by
the application at the start of every batch, so all guardians use the very
same values. Not being able to load a configuration is a critical condition
and there is no recovery path for the client.
*/
package gconf
