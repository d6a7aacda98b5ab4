/*

Package fedescrow defines the interfaces shared by the guardian side of the
federation (storage, batch information, module item amounts, genesis options)
and the extensions built on top of them.

Extensions live in the x/ directory. Each of them processes its own inputs
and outputs of a federation transaction and reports the value they carry,
so that the app package can enforce that a transaction neither creates nor
destroys value.

*/
package fedescrow
